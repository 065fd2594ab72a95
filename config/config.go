// Copyright 2020 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"
	"github.com/go-viper/mapstructure/v2"
	"github.com/gorse-io/ncf/common/log"
	"github.com/gorse-io/ncf/dataset"
	"github.com/gorse-io/ncf/model"
	"github.com/gorse-io/ncf/model/ncf"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config is the configuration for training and evaluation.
type Config struct {
	Model      ModelConfig      `mapstructure:"model"`
	Training   TrainingConfig   `mapstructure:"training"`
	Evaluation EvaluationConfig `mapstructure:"evaluation"`
	Dataset    DatasetConfig    `mapstructure:"dataset"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Monitor    MonitorConfig    `mapstructure:"monitor"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// ModelConfig is the configuration for the model architecture.
type ModelConfig struct {
	Variant     string  `mapstructure:"variant" validate:"oneof=MLP GMF NMF NMF-pretrained"`
	NFactors    int     `mapstructure:"n_factors" validate:"gt=0"`
	Layers      []int   `mapstructure:"layers" validate:"required,min=1,dive,gt=0"`
	Lr          float32 `mapstructure:"lr" validate:"gt=0"`
	Reg         float32 `mapstructure:"reg" validate:"gte=0"`
	InitStdDev  float32 `mapstructure:"init_std_dev" validate:"gte=0"`
	Device      string  `mapstructure:"device" validate:"required"`
	RandomState int64   `mapstructure:"random_state"`
}

// TrainingConfig is the configuration for the training loop.
type TrainingConfig struct {
	NEpochs    int `mapstructure:"n_epochs" validate:"gt=0"`
	BatchSize  int `mapstructure:"batch_size" validate:"gt=0"`
	NNegatives int `mapstructure:"n_negatives" validate:"gte=0"`
	Jobs       int `mapstructure:"jobs" validate:"gt=0"`
	Verbose    int `mapstructure:"verbose" validate:"gt=0"`
	Patience   int `mapstructure:"patience" validate:"gte=0"`
}

// EvaluationConfig is the configuration for evaluation.
type EvaluationConfig struct {
	TopK int `mapstructure:"top_k" validate:"gt=0"`
	// NNegatives is the number of test negatives sampled per user when a test
	// set is split from a database.
	NNegatives int `mapstructure:"n_negatives" validate:"gt=0"`
}

// DatasetConfig selects one source of feedback. A database takes precedence
// over files, and files over a built-in dataset.
type DatasetConfig struct {
	Name      string    `mapstructure:"name"`
	TrainPath string    `mapstructure:"train_path" validate:"required_with=TestPath"`
	TestPath  string    `mapstructure:"test_path" validate:"required_with=TrainPath"`
	Database  string    `mapstructure:"database"`
	Table     string    `mapstructure:"table" validate:"required_with=Database"`
	Since     time.Time `mapstructure:"since"`
	Limit     int       `mapstructure:"limit" validate:"gte=0"`
}

// CheckpointConfig locates the model checkpoint. URI is a local directory or
// one of s3://bucket/prefix, gcs://bucket/prefix and azblob://container/prefix.
type CheckpointConfig struct {
	URI   string          `mapstructure:"uri"`
	Name  string          `mapstructure:"name" validate:"required"`
	S3    S3Config        `mapstructure:"s3"`
	GCS   GCSConfig       `mapstructure:"gcs"`
	Azure AzureBlobConfig `mapstructure:"azure"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

type GCSConfig struct {
	CredentialsFile string `mapstructure:"credentials_file"`
}

type AzureBlobConfig struct {
	AccountName      string `mapstructure:"account_name"`
	AccountKey       string `mapstructure:"account_key"`
	Endpoint         string `mapstructure:"endpoint"`
	ConnectionString string `mapstructure:"connection_string"`
}

// CacheConfig is the configuration for the recommendation cache.
type CacheConfig struct {
	URI  string        `mapstructure:"uri" validate:"omitempty,startswith=redis://|startswith=rediss://"`
	Size int           `mapstructure:"size" validate:"gt=0"`
	TTL  time.Duration `mapstructure:"ttl" validate:"gte=0"`
}

type MonitorConfig struct {
	Pushgateway string `mapstructure:"pushgateway"`
	Job         string `mapstructure:"job" validate:"required"`
}

// TracingConfig is the configuration for OpenTelemetry tracing.
type TracingConfig struct {
	EnableTracing     bool    `mapstructure:"enable_tracing"`
	Exporter          string  `mapstructure:"exporter" validate:"oneof=zipkin otlp otlphttp"`
	CollectorEndpoint string  `mapstructure:"collector_endpoint"`
	Sampler           string  `mapstructure:"sampler" validate:"oneof=always never ratio"`
	Ratio             float64 `mapstructure:"ratio" validate:"gte=0,lte=1"`
}

func GetDefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			Variant:    string(ncf.NMF),
			NFactors:   8,
			Layers:     []int{64, 32, 16, 8},
			Lr:         0.001,
			InitStdDev: 0.01,
			Device:     "cpu",
		},
		Training: TrainingConfig{
			NEpochs:    20,
			BatchSize:  256,
			NNegatives: 4,
			Jobs:       1,
			Verbose:    1,
		},
		Evaluation: EvaluationConfig{
			TopK:       10,
			NNegatives: 99,
		},
		Dataset: DatasetConfig{
			Name:  "pinterest-20",
			Table: "feedback",
		},
		Checkpoint: CheckpointConfig{
			Name: "ncf.model",
		},
		Cache: CacheConfig{
			Size: 10,
			TTL:  24 * time.Hour,
		},
		Monitor: MonitorConfig{
			Job: "ncf",
		},
		Tracing: TracingConfig{
			Exporter: "otlp",
			Sampler:  "always",
			Ratio:    1,
		},
	}
}

func setDefault() {
	defaultConfig := GetDefaultConfig()
	// [model]
	viper.SetDefault("model.variant", defaultConfig.Model.Variant)
	viper.SetDefault("model.n_factors", defaultConfig.Model.NFactors)
	viper.SetDefault("model.layers", defaultConfig.Model.Layers)
	viper.SetDefault("model.lr", defaultConfig.Model.Lr)
	viper.SetDefault("model.reg", defaultConfig.Model.Reg)
	viper.SetDefault("model.init_std_dev", defaultConfig.Model.InitStdDev)
	viper.SetDefault("model.device", defaultConfig.Model.Device)
	viper.SetDefault("model.random_state", defaultConfig.Model.RandomState)
	// [training]
	viper.SetDefault("training.n_epochs", defaultConfig.Training.NEpochs)
	viper.SetDefault("training.batch_size", defaultConfig.Training.BatchSize)
	viper.SetDefault("training.n_negatives", defaultConfig.Training.NNegatives)
	viper.SetDefault("training.jobs", defaultConfig.Training.Jobs)
	viper.SetDefault("training.verbose", defaultConfig.Training.Verbose)
	viper.SetDefault("training.patience", defaultConfig.Training.Patience)
	// [evaluation]
	viper.SetDefault("evaluation.top_k", defaultConfig.Evaluation.TopK)
	viper.SetDefault("evaluation.n_negatives", defaultConfig.Evaluation.NNegatives)
	// [dataset]
	viper.SetDefault("dataset.name", defaultConfig.Dataset.Name)
	viper.SetDefault("dataset.table", defaultConfig.Dataset.Table)
	// [checkpoint]
	viper.SetDefault("checkpoint.name", defaultConfig.Checkpoint.Name)
	// [cache]
	viper.SetDefault("cache.size", defaultConfig.Cache.Size)
	viper.SetDefault("cache.ttl", defaultConfig.Cache.TTL)
	// [monitor]
	viper.SetDefault("monitor.job", defaultConfig.Monitor.Job)
	// [tracing]
	viper.SetDefault("tracing.exporter", defaultConfig.Tracing.Exporter)
	viper.SetDefault("tracing.sampler", defaultConfig.Tracing.Sampler)
	viper.SetDefault("tracing.ratio", defaultConfig.Tracing.Ratio)
}

type configBinding struct {
	key string
	env string
}

func bindEnv() {
	bindings := []configBinding{
		{"model.variant", "NCF_MODEL_VARIANT"},
		{"model.device", "NCF_DEVICE"},
		{"training.n_epochs", "NCF_N_EPOCHS"},
		{"training.jobs", "NCF_JOBS"},
		{"dataset.name", "NCF_DATASET_NAME"},
		{"dataset.database", "NCF_DATABASE"},
		{"dataset.since", "NCF_DATASET_SINCE"},
		{"checkpoint.uri", "NCF_CHECKPOINT_URI"},
		{"checkpoint.s3.endpoint", "NCF_S3_ENDPOINT"},
		{"checkpoint.s3.access_key_id", "NCF_S3_ACCESS_KEY_ID"},
		{"checkpoint.s3.secret_access_key", "NCF_S3_SECRET_ACCESS_KEY"},
		{"checkpoint.gcs.credentials_file", "NCF_GCS_CREDENTIALS_FILE"},
		{"checkpoint.azure.account_name", "NCF_AZURE_ACCOUNT_NAME"},
		{"checkpoint.azure.account_key", "NCF_AZURE_ACCOUNT_KEY"},
		{"checkpoint.azure.connection_string", "NCF_AZURE_CONNECTION_STRING"},
		{"cache.uri", "NCF_CACHE_URI"},
		{"monitor.pushgateway", "NCF_PUSHGATEWAY"},
		{"tracing.enable_tracing", "NCF_ENABLE_TRACING"},
		{"tracing.exporter", "NCF_TRACING_EXPORTER"},
		{"tracing.collector_endpoint", "NCF_TRACING_COLLECTOR_ENDPOINT"},
	}
	for _, binding := range bindings {
		err := viper.BindEnv(binding.key, binding.env)
		if err != nil {
			log.Logger().Fatal("failed to bind a Viper key to a ENV variable", zap.Error(err))
		}
	}
}

// stringToTimeHookFunc parses dates in any layout known to dateparse.
func stringToTimeHookFunc() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.String || t != reflect.TypeOf(time.Time{}) {
			return data, nil
		}
		if data.(string) == "" {
			return time.Time{}, nil
		}
		return dateparse.ParseAny(data.(string))
	}
}

func unmarshal() (*Config, error) {
	var conf Config
	err := viper.Unmarshal(&conf, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		stringToTimeHookFunc(),
	)))
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &conf, nil
}

// LoadConfig loads configuration from a TOML file and environment variables.
// Defaults are used if path is empty.
func LoadConfig(path string) (*Config, error) {
	setDefault()
	bindEnv()
	viper.SetConfigType("toml")
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, errors.Trace(err)
		}
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return nil, errors.Trace(err)
		}
	}
	conf, err := unmarshal()
	if err != nil {
		return nil, err
	}
	if err = conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

func (config *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	english := en.New()
	trans, _ := ut.New(english, english).GetTranslator("en")
	if err := entranslations.RegisterDefaultTranslations(validate, trans); err != nil {
		return errors.Trace(err)
	}
	if err := validate.Struct(config); err != nil {
		var fieldErrors validator.ValidationErrors
		if errors.As(err, &fieldErrors) {
			messages := lo.Map(fieldErrors, func(e validator.FieldError, _ int) string {
				return e.Translate(trans)
			})
			return errors.NotValidf("config (%s)", strings.Join(messages, "; "))
		}
		return errors.NewNotValid(err, "invalid config")
	}
	if config.Model.Layers[0]%2 != 0 {
		return errors.NotValidf("odd first layer %d", config.Model.Layers[0])
	}
	return nil
}

// ToParams converts the model and training sections to hyper-parameters.
func (config *Config) ToParams() model.Params {
	return model.Params{
		model.Variant:     config.Model.Variant,
		model.NFactors:    config.Model.NFactors,
		model.Layers:      config.Model.Layers,
		model.Lr:          config.Model.Lr,
		model.Reg:         config.Model.Reg,
		model.InitStdDev:  config.Model.InitStdDev,
		model.Device:      config.Model.Device,
		model.RandomState: config.Model.RandomState,
		model.NEpochs:     config.Training.NEpochs,
		model.BatchSize:   config.Training.BatchSize,
		model.NNegatives:  config.Training.NNegatives,
	}
}

func (config *Config) FitConfig() *ncf.FitConfig {
	return ncf.NewFitConfig().
		SetJobs(config.Training.Jobs).
		SetVerbose(config.Training.Verbose).
		SetPatience(config.Training.Patience).
		SetTopK(config.Evaluation.TopK)
}

// DatabaseOptions converts the dataset section to database loading options.
func (config *Config) DatabaseOptions() []dataset.DatabaseOption {
	var opts []dataset.DatabaseOption
	if !config.Dataset.Since.IsZero() {
		opts = append(opts, dataset.WithSince(config.Dataset.Since))
	}
	if config.Dataset.Limit > 0 {
		opts = append(opts, dataset.WithLimit(config.Dataset.Limit))
	}
	return opts
}
