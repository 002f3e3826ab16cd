package main

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setConfig(t *testing.T, kv map[string]any) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set("program-id", defaultProgramID)
	viper.Set("publisher", publisherNone)
	viper.Set("book-capacity", 10)
	for k, v := range kv {
		viper.Set(k, v)
	}
}

func TestLoadConfig(t *testing.T) {
	setConfig(t, map[string]any{
		"publisher":     publisherKafkaGo,
		"kafka-brokers": []string{"localhost:9092"},
		"crank-drain":   3,
	})

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, defaultProgramID, cfg.ProgramID.String())
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, uint8(3), cfg.CrankDrain)
}

func TestLoadConfig_CrankDrainBounds(t *testing.T) {
	setConfig(t, map[string]any{"crank-drain": 255})
	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, uint8(255), cfg.CrankDrain)

	setConfig(t, map[string]any{"crank-drain": 256})
	_, err = loadConfig()
	assert.ErrorContains(t, err, "crank drain 256")
}

func TestLoadConfig_Rejects(t *testing.T) {
	for name, kv := range map[string]map[string]any{
		"unknown publisher":  {"publisher": "carrier-pigeon"},
		"kafka sans brokers": {"publisher": publisherSarama},
		"bad program id":     {"program-id": "not-base58!"},
		"zero book capacity": {"book-capacity": 0},
		"crank drain 300":    {"crank-drain": 300},
	} {
		t.Run(name, func(t *testing.T) {
			setConfig(t, kv)
			_, err := loadConfig()
			assert.Error(t, err)
		})
	}
}
