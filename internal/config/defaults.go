package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Infer.Host == "" {
		cfg.Infer.Host = "localhost"
	}
	if cfg.Infer.Port == 0 {
		cfg.Infer.Port = 3030
	}
	if cfg.Infer.URL == "" {
		cfg.Infer.URL = "http://127.0.0.1:3030"
	}
	if cfg.Infer.TimeoutSeconds == 0 {
		cfg.Infer.TimeoutSeconds = 6
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/aide/data/assistant.db"
	}
	if cfg.Web.SearxURL == "" {
		cfg.Web.SearxURL = "http://127.0.0.1:8888"
	}
	if cfg.Web.TimeoutSeconds == 0 {
		cfg.Web.TimeoutSeconds = 8
	}
	if cfg.Web.QueryTTLHours == 0 {
		cfg.Web.QueryTTLHours = 24
	}
	if cfg.Model.Dir == "" {
		cfg.Model.Dir = "/usr/local/var/aide/data/model"
	}
	if cfg.Model.ContextLength == 0 {
		cfg.Model.ContextLength = 8
	}
	if cfg.Model.EmbeddingDim == 0 {
		cfg.Model.EmbeddingDim = 32
	}
	if cfg.Model.HiddenDim == 0 {
		cfg.Model.HiddenDim = 128
	}
	if cfg.Model.Epochs == 0 {
		cfg.Model.Epochs = 2
	}
	if cfg.Model.LearningRate == 0 {
		cfg.Model.LearningRate = 0.03
	}
	if cfg.Model.MaxVocab == 0 {
		cfg.Model.MaxVocab = 10000
	}
}
