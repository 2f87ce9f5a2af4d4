package conf

import (
	"fmt"

	"github.com/yola1107/kratos/v2/config"
	"github.com/yola1107/kratos/v2/config/file"
	zconf "github.com/yola1107/kratos/v2/library/log/zap/conf"
)

const Name = "cardtable"
const Version = "v0.1.0"

// Bootstrap is the root of config.yaml.
type Bootstrap struct {
	Server *Server `json:"server"`
	Data   *Data   `json:"data"`
	Room   *Room   `json:"room"`
}

type Server struct {
	Websocket *Websocket `json:"websocket"`
}

type Websocket struct {
	Network string `json:"network"`
	Addr    string `json:"addr"`
	// Timeout is a Go duration string, e.g. "1s".
	Timeout string `json:"timeout"`
}

type Data struct {
	Redis *Redis `json:"redis"`
}

type Redis struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// Room tunes the table core.
type Room struct {
	// TaskLoopSize bounds the shared task pool.
	TaskLoopSize int `json:"taskLoopSize"`
}

// LoadConfig loads and scans config.yaml from the given path.
func LoadConfig(flagconf string) (config.Config, *Bootstrap, *zconf.Bootstrap) {
	c := config.New(
		config.WithSource(
			file.NewSource(flagconf),
		),
	)

	if err := c.Load(); err != nil {
		panic(err)
	}

	var (
		bc Bootstrap
		lc zconf.Bootstrap
	)

	if err := c.Scan(&bc); err != nil {
		panic(fmt.Errorf("bootstrap config invalid: %v", err))
	}
	if err := c.Scan(&lc); err != nil || lc.ValidateAll() != nil {
		panic(fmt.Errorf("logger config invalid: %v", err))
	}

	return c, &bc, &lc
}
