package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/fan1dy/personalized-llms-colm/colmd"
)

const pathEnv = ".env"

type envConfig struct {
	LogLevel   string `env:"TRAINER_LOG_LEVEL"   envDefault:"info"`
	InstanceID string `env:"TRAINER_INSTANCE_ID"`

	DataDir    string `env:"TRAINER_DATA_DIR"    envDefault:"./data"`
	Dataset    string `env:"TRAINER_DATASET"     envDefault:"synthetic"`
	ResultsDir string `env:"TRAINER_RESULTS_DIR" envDefault:"./results"`
	ConfigPath string `env:"TRAINER_CONFIG_PATH"`

	Backend        string  `env:"TRAINER_BACKEND"         envDefault:"single"`
	NumClients     int     `env:"TRAINER_NUM_CLIENTS"     envDefault:"4"`
	Iterations     int     `env:"TRAINER_ITERATIONS"      envDefault:"500"`
	AccSteps       int     `env:"TRAINER_ACC_STEPS"       envDefault:"1"`
	BatchSize      int     `env:"TRAINER_BATCH_SIZE"      envDefault:"16"`
	SequenceLength int     `env:"TRAINER_SEQUENCE_LENGTH" envDefault:"64"`
	EvalFreq       int     `env:"TRAINER_EVAL_FREQ"       envDefault:"25"`
	EvalBatches    int     `env:"TRAINER_EVAL_BATCHES"    envDefault:"12"`
	TrustFreq      int     `env:"TRAINER_TRUST_FREQ"      envDefault:"25"`
	Pretraining    int     `env:"TRAINER_PRETRAINING_ROUNDS" envDefault:"50"`
	GradClip       float64 `env:"TRAINER_GRAD_CLIP"       envDefault:"0"`
	Seed           int64   `env:"TRAINER_SEED"            envDefault:"42"`

	MetricsAddr string `env:"TRAINER_METRICS_ADDRESS" envDefault:":9090"`

	MQTTAddress  string        `env:"TRAINER_MQTT_ADDRESS"`
	MQTTQoS      uint8         `env:"TRAINER_MQTT_QOS"     envDefault:"2"`
	MQTTTimeout  time.Duration `env:"TRAINER_MQTT_TIMEOUT" envDefault:"30s"`
	MQTTUsername string        `env:"TRAINER_MQTT_USERNAME"`
	MQTTPassword string        `env:"TRAINER_MQTT_PASSWORD"`
	MQTTTopic    string        `env:"TRAINER_MQTT_TOPIC"`

	HistoryDBPath  string `env:"TRAINER_HISTORY_DB_PATH"`
	CheckpointPath string `env:"TRAINER_CHECKPOINT_PATH"`
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := os.Stat(pathEnv); err == nil {
		_ = godotenv.Load(pathEnv)
	}

	cfg := envConfig{}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("failed to load configuration : %s", err.Error())
	}

	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}

	if err := colmd.StartTrainer(ctx, cancel, colmd.Config{
		LogLevel:       cfg.LogLevel,
		InstanceID:     cfg.InstanceID,
		DataDir:        cfg.DataDir,
		Dataset:        cfg.Dataset,
		ResultsDir:     cfg.ResultsDir,
		ConfigPath:     cfg.ConfigPath,
		Backend:        cfg.Backend,
		NumClients:     cfg.NumClients,
		Iterations:     cfg.Iterations,
		AccSteps:       cfg.AccSteps,
		BatchSize:      cfg.BatchSize,
		SequenceLength: cfg.SequenceLength,
		EvalFreq:       cfg.EvalFreq,
		EvalBatches:    cfg.EvalBatches,
		TrustFreq:      cfg.TrustFreq,
		Pretraining:    cfg.Pretraining,
		GradClip:       cfg.GradClip,
		Seed:           cfg.Seed,
		MetricsAddr:    cfg.MetricsAddr,
		MQTTAddress:    cfg.MQTTAddress,
		MQTTQoS:        cfg.MQTTQoS,
		MQTTTimeout:    cfg.MQTTTimeout,
		MQTTUsername:   cfg.MQTTUsername,
		MQTTPassword:   cfg.MQTTPassword,
		MQTTTopic:      cfg.MQTTTopic,
		HistoryDBPath:  cfg.HistoryDBPath,
		CheckpointPath: cfg.CheckpointPath,
	}); err != nil {
		log.Fatalf("trainer exited with error: %s", err.Error())
	}
}
