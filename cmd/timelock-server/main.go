package main

import (
	"os"

	grpc_logrus "github.com/grpc-ecosystem/go-grpc-middleware/logging/logrus"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/code-timelock-server/pkg/code/app"
	grpc_app "github.com/code-payments/code-timelock-server/pkg/grpc/app"
)

func main() {
	grpcLog := logrus.StandardLogger().WithField("type", "grpc")

	err := grpc_app.Run(
		app.New(),
		grpc_app.WithUnaryServerInterceptor(grpc_logrus.UnaryServerInterceptor(grpcLog)),
		grpc_app.WithStreamServerInterceptor(grpc_logrus.StreamServerInterceptor(grpcLog)),
	)
	if err != nil {
		logrus.StandardLogger().WithError(err).Error("error running timelock server")
		os.Exit(1)
	}
}
