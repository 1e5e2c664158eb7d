package config

type Config interface {
	EnvConfig
	ProviderConfig
	ExchangeConfig
	SessionConfig
}

type mainConfig struct {
	EnvVars
	Provider
	Exchange
	Session
}

func New() Config {
	return mainConfig{}
}
