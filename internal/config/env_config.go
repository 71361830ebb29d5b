package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

const (
	MCPTransportStdio = "stdio"
	MCPTransportHTTP  = "http"
	MCPTransportNone  = "none"

	version = "2.0.0"
)

type EnvConfig interface {
	GetEnv() string
	GetAppName() string
	GetVersion() string
	GetLogLevel() string
	IsDebug() bool
	GetCallbackAddr() string
	GetCallbackBaseURL() string
	GetMCPTransport() string
	GetMCPHTTPAddr() string
}

type EnvVars struct {
	Env          string `env:"ENV" envDefault:"DEV"`
	AppName      string `env:"APP_NAME" envDefault:"Ave OAuth Bridge"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	CallbackHost string `env:"CALLBACK_SERVER_HOST" envDefault:"0.0.0.0"`
	CallbackPort int    `env:"CALLBACK_SERVER_PORT" envDefault:"3030"`
	RedirectBase string `env:"REDIRECT_URI" envDefault:"http://localhost"`
	MCPTransport string `env:"MCP_TRANSPORT" envDefault:"stdio"`
	MCPHTTPAddr  string `env:"MCP_HTTP_ADDR" envDefault:":8000"`
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetEnv() string {
	return e.Env
}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

func (EnvVars) GetVersion() string {
	return version
}

func (e EnvVars) GetLogLevel() string {
	return strings.ToLower(e.LogLevel)
}

// IsDebug gates the diagnostics endpoint.
func (e EnvVars) IsDebug() bool {
	return e.GetLogLevel() == "debug"
}

func (e EnvVars) GetCallbackAddr() string {
	return net.JoinHostPort(e.CallbackHost, strconv.Itoa(e.CallbackPort))
}

// GetCallbackBaseURL is the public base that Google redirects to. A
// REDIRECT_URI without an explicit port gets the callback server port.
func (e EnvVars) GetCallbackBaseURL() string {
	base := strings.TrimRight(e.RedirectBase, "/")
	u, err := url.Parse(base)
	if err != nil || u.Port() != "" || u.Path != "" {
		return base
	}
	return fmt.Sprintf("%s:%d", base, e.CallbackPort)
}

func (e EnvVars) GetMCPTransport() string {
	return e.MCPTransport
}

func (e EnvVars) GetMCPHTTPAddr() string {
	return e.MCPHTTPAddr
}
