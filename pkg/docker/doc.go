// Package docker runs disposable PostgreSQL servers through testcontainers.
//
// It backs the integration tests of the history, executor and CLI packages,
// giving each test a real server with session level advisory locks and
// transactional DDL.
//
// # Usage Example
//
//	container := docker.NewWithOptions(docker.DockerOptions{
//		Version:     "17",
//		InitScripts: []string{"testdata/roles.sql"},
//	})
//
//	if err := container.Start(ctx); err != nil {
//		return err
//	}
//	defer container.Stop(ctx)
//
//	dsn, err := container.GetDSN(ctx)
//	if err != nil {
//		return err
//	}
//
//	sess, err := postgres.Open(ctx, postgres.DriverPQ, dsn)
package docker
