package internal

import (
	"time"
)

type Config struct {
	Host      string `env:"HOST,required=true"`
	Port      int    `env:"PORT,required=true"`
	DebugPort int    `env:"DEBUG_PORT,required=true"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH,required=true"`
	LogLevel       string `env:"LOG_LEVEL,required=true"`

	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,required=true"`
	SinkTimeout          time.Duration `env:"SINK_TIMEOUT,required=true"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,required=true"`
	SweepInterval        time.Duration `env:"SWEEP_INTERVAL,required=true"`

	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,required=true"`
	JWTSecret         string        `env:"JWT_SECRET,required=true"`
}
