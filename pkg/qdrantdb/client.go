package qdrantdb

import (
	"github.com/qdrant/go-client/qdrant"
)

type Config struct {
	Host   string
	Port   int // gRPC port
	APIKey string
	UseTLS bool
}

func NewClient(cfg Config) (*qdrant.Client, error) {
	return qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
}
