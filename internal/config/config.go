// Package config loads layered configuration for the sentiment tooling:
// built-in defaults, an optional config file, SENTIMENT_* environment
// variables, and command-line flags, in ascending precedence.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	LogLevel string         `mapstructure:"log_level"`
	Paths    PathsConfig    `mapstructure:"paths"`
	Training TrainingConfig `mapstructure:"training"`
	Server   ServerConfig   `mapstructure:"server"`
}

type PathsConfig struct {
	ArtifactPath string `mapstructure:"artifact_path"`
	DataPath     string `mapstructure:"data_path"`
}

type TrainingConfig struct {
	SeqLen          int     `mapstructure:"seq_len"`
	MaxVocab        int     `mapstructure:"max_vocab"`
	RemoveStopwords bool    `mapstructure:"remove_stopwords"`
	EmbedDim        int     `mapstructure:"embed_dim"`
	HiddenUnits     int     `mapstructure:"hidden_units"`
	Dropout         float64 `mapstructure:"dropout"`
	Bidirectional   bool    `mapstructure:"bidirectional"`
	Epochs          int     `mapstructure:"epochs"`
	BatchSize       int     `mapstructure:"batch_size"`
	LearningRate    float64 `mapstructure:"learning_rate"`
	ValidationSplit float64 `mapstructure:"validation_split"`
	TestSplit       float64 `mapstructure:"test_split"`
	Seed            int64   `mapstructure:"seed"`
	Threshold       float64 `mapstructure:"threshold"`
}

type ServerConfig struct {
	ListenAddr      string `mapstructure:"listen_addr"`
	MaxTextBytes    int    `mapstructure:"max_text_bytes"`
	RequestTimeout  int    `mapstructure:"request_timeout"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"`
	Workers         int    `mapstructure:"workers"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Paths: PathsConfig{
			ArtifactPath: "models/sentiment.model",
			DataPath:     "data/reviews.csv",
		},
		Training: TrainingConfig{
			SeqLen:          64,
			MaxVocab:        20000,
			RemoveStopwords: false,
			EmbedDim:        64,
			HiddenUnits:     128,
			Dropout:         0.2,
			Bidirectional:   true,
			Epochs:          5,
			BatchSize:       32,
			LearningRate:    1e-3,
			ValidationSplit: 0.1,
			TestSplit:       0.2,
			Seed:            42,
			Threshold:       0.5,
		},
		Server: ServerConfig{
			ListenAddr:      ":8080",
			MaxTextBytes:    4096,
			RequestTimeout:  30,
			ShutdownTimeout: 30,
			Workers:         2,
		},
	}
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("log-level", defaults.LogLevel, "Log level (debug|info|warn|error)")
	fs.String("paths-artifact-path", defaults.Paths.ArtifactPath, "Path to the model artifact")
	fs.String("paths-data-path", defaults.Paths.DataPath, "Path to the labelled CSV dataset")
	fs.Int("training-seq-len", defaults.Training.SeqLen, "Padded sequence length")
	fs.Int("training-max-vocab", defaults.Training.MaxVocab, "Vocabulary cap including reserved ids (0 = unbounded)")
	fs.Bool("training-remove-stopwords", defaults.Training.RemoveStopwords, "Drop English stopwords during tokenization")
	fs.Int("training-embed-dim", defaults.Training.EmbedDim, "Embedding dimension")
	fs.Int("training-hidden-units", defaults.Training.HiddenUnits, "Recurrent hidden units per direction")
	fs.Float64("training-dropout", defaults.Training.Dropout, "Dropout rate before the dense head")
	fs.Bool("training-bidirectional", defaults.Training.Bidirectional, "Run the recurrent encoder in both directions")
	fs.Int("training-epochs", defaults.Training.Epochs, "Training epochs")
	fs.Int("training-batch-size", defaults.Training.BatchSize, "Mini-batch size")
	fs.Float64("training-learning-rate", defaults.Training.LearningRate, "Adam learning rate")
	fs.Float64("training-validation-split", defaults.Training.ValidationSplit, "Fraction of training data held out per epoch")
	fs.Float64("training-test-split", defaults.Training.TestSplit, "Fraction of the dataset reserved for final evaluation")
	fs.Int64("training-seed", defaults.Training.Seed, "Seed for shuffling and weight init")
	fs.Float64("training-threshold", defaults.Training.Threshold, "Probability cut-off for the positive label")
	fs.String("server-listen-addr", defaults.Server.ListenAddr, "HTTP listen address")
	fs.Int("server-max-text-bytes", defaults.Server.MaxTextBytes, "Maximum request text size in bytes")
	fs.Int("server-request-timeout", defaults.Server.RequestTimeout, "Per-request deadline in seconds")
	fs.Int("server-shutdown-timeout", defaults.Server.ShutdownTimeout, "Graceful shutdown drain period in seconds")
	fs.Int("server-workers", defaults.Server.Workers, "Max concurrent prediction requests (0 = unbounded)")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := v.BindPFlags(opts.Cmd.Flags()); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}
	registerAliases(v)

	v.SetEnvPrefix("SENTIMENT")
	replacer := strings.NewReplacer("-", "_", ".", "_", "__", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("sentiment")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("log_level", c.LogLevel)
	v.SetDefault("paths.artifact_path", c.Paths.ArtifactPath)
	v.SetDefault("paths.data_path", c.Paths.DataPath)
	v.SetDefault("training.seq_len", c.Training.SeqLen)
	v.SetDefault("training.max_vocab", c.Training.MaxVocab)
	v.SetDefault("training.remove_stopwords", c.Training.RemoveStopwords)
	v.SetDefault("training.embed_dim", c.Training.EmbedDim)
	v.SetDefault("training.hidden_units", c.Training.HiddenUnits)
	v.SetDefault("training.dropout", c.Training.Dropout)
	v.SetDefault("training.bidirectional", c.Training.Bidirectional)
	v.SetDefault("training.epochs", c.Training.Epochs)
	v.SetDefault("training.batch_size", c.Training.BatchSize)
	v.SetDefault("training.learning_rate", c.Training.LearningRate)
	v.SetDefault("training.validation_split", c.Training.ValidationSplit)
	v.SetDefault("training.test_split", c.Training.TestSplit)
	v.SetDefault("training.seed", c.Training.Seed)
	v.SetDefault("training.threshold", c.Training.Threshold)
	v.SetDefault("server.listen_addr", c.Server.ListenAddr)
	v.SetDefault("server.max_text_bytes", c.Server.MaxTextBytes)
	v.SetDefault("server.request_timeout", c.Server.RequestTimeout)
	v.SetDefault("server.shutdown_timeout", c.Server.ShutdownTimeout)
	v.SetDefault("server.workers", c.Server.Workers)
}

func registerAliases(v *viper.Viper) {
	v.RegisterAlias("log_level", "log-level")
	v.RegisterAlias("paths.artifact_path", "paths-artifact-path")
	v.RegisterAlias("paths.data_path", "paths-data-path")
	v.RegisterAlias("training.seq_len", "training-seq-len")
	v.RegisterAlias("training.max_vocab", "training-max-vocab")
	v.RegisterAlias("training.remove_stopwords", "training-remove-stopwords")
	v.RegisterAlias("training.embed_dim", "training-embed-dim")
	v.RegisterAlias("training.hidden_units", "training-hidden-units")
	v.RegisterAlias("training.dropout", "training-dropout")
	v.RegisterAlias("training.bidirectional", "training-bidirectional")
	v.RegisterAlias("training.epochs", "training-epochs")
	v.RegisterAlias("training.batch_size", "training-batch-size")
	v.RegisterAlias("training.learning_rate", "training-learning-rate")
	v.RegisterAlias("training.validation_split", "training-validation-split")
	v.RegisterAlias("training.test_split", "training-test-split")
	v.RegisterAlias("training.seed", "training-seed")
	v.RegisterAlias("training.threshold", "training-threshold")
	v.RegisterAlias("server.listen_addr", "server-listen-addr")
	v.RegisterAlias("server.max_text_bytes", "server-max-text-bytes")
	v.RegisterAlias("server.request_timeout", "server-request-timeout")
	v.RegisterAlias("server.shutdown_timeout", "server-shutdown-timeout")
	v.RegisterAlias("server.workers", "server-workers")
}
