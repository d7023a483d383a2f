package main

import "time"

type Config struct {
	Host              string        `env:"HOST,default=localhost"`
	Port              int           `env:"PORT,default=8080"`
	BadgerFilepath    string        `env:"BADGER_FILEPATH,required=true"`
	LogLevel          string        `env:"LOG_LEVEL,default=info"`
	SendBufferSize    int           `env:"SEND_BUFFER_SIZE,default=256"`
	MaxMessageSize    int64         `env:"MAX_MESSAGE_SIZE,default=4096"`
	WriteTimeout      time.Duration `env:"WRITE_TIMEOUT,default=10s"`
	PongTimeout       time.Duration `env:"PONG_TIMEOUT,default=60s"`
	PingInterval      time.Duration `env:"PING_INTERVAL,default=54s"`
	LimitMessages     *int          `env:"LIMIT_MESSAGES"`
	AllowUnknownUsers bool          `env:"ALLOW_UNKNOWN_USERS,default=false"`
	GCInterval        time.Duration `env:"GC_INTERVAL,default=5m"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
}
