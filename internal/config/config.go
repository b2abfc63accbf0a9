// Package config loads the gimbal-director configuration from a JSON file
// with viper, layering defaults under whatever the file provides.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/skyward-uas/gimbal-director/internal/control"
	"github.com/skyward-uas/gimbal-director/internal/gimbal"
	"github.com/skyward-uas/gimbal-director/internal/otel"
	"github.com/skyward-uas/gimbal-director/internal/session"
	"github.com/skyward-uas/gimbal-director/internal/solver"
	"github.com/skyward-uas/gimbal-director/internal/targeting"
	"github.com/skyward-uas/gimbal-director/internal/terrain"
)

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")

	viper.SetDefault("gimbal.driver", "siyi")
	viper.SetDefault("gimbal.address", "192.168.144.25:37260")
	viper.SetDefault("gimbal.streamHz", 10)
	viper.SetDefault("gimbal.staleAfterMs", 3000)
	viper.SetDefault("gimbal.keepaliveMs", 1500)

	viper.SetDefault("telemetry.listenAddress", ":14560")
	viper.SetDefault("telemetry.staleAfterMs", 2000)

	viper.SetDefault("commands.listenAddress", ":14561")

	viper.SetDefault("terrain.provider", "srtm")
	viper.SetDefault("terrain.dataDir", "./srtm")
	viper.SetDefault("terrain.constantHeight", 0.0)

	viper.SetDefault("solver.maxIterations", 10)
	viper.SetDefault("solver.toleranceM", 0.5)
	viper.SetDefault("solver.maxDistanceM", 5000.0)
	viper.SetDefault("solver.minAglM", 10.0)
	viper.SetDefault("solver.elevationTimeoutMs", 100)

	viper.SetDefault("targeting.minIntervalMs", 100)
	viper.SetDefault("targeting.maxStalenessMs", 2000)
	viper.SetDefault("targeting.minChangeDeg", 0.1)
	viper.SetDefault("targeting.updateIntervalMs", 500)

	viper.SetDefault("control.maxSpeed", 80.0)
	viper.SetDefault("control.decelBandDeg", 10.0)
	viper.SetDefault("control.guardBandDeg", 5.0)
	viper.SetDefault("control.convergedDeg", 2.0)
	viper.SetDefault("control.invertPitch", true)
	viper.SetDefault("control.cycleIntervalMs", 200)

	viper.SetDefault("session.backend", "memory")
	viper.SetDefault("session.outputDir", "./sessions")
	viper.SetDefault("session.compressOutput", false)
	viper.SetDefault("session.sqlitePath", "./sessions/gimbal.db")
	viper.SetDefault("session.postgresDsn", "")
	viper.SetDefault("session.aircraft", "")
	viper.SetDefault("session.operator", "")

	viper.SetDefault("status.dir", ".")
	viper.SetDefault("status.intervalMs", 1000)

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "gimbal-metrics")
	viper.SetDefault("influx.backupPath", "./influx_backup.log.gzip")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "gimbal-director")
	viper.SetDefault("otel.batchTimeoutMs", 5000)
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetConfigName("gimbal_director.cfg.json")
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}
	return nil
}

// Terrain builds the elevation provider configuration.
func Terrain() terrain.Config {
	return terrain.Config{
		Provider: viper.GetString("terrain.provider"),
		DataDir:  viper.GetString("terrain.dataDir"),
		Height:   viper.GetFloat64("terrain.constantHeight"),
	}
}

// Solver builds the ray-terrain solver configuration.
func Solver() solver.Config {
	return solver.Config{
		MaxIterations:    viper.GetInt("solver.maxIterations"),
		ToleranceM:       viper.GetFloat64("solver.toleranceM"),
		MaxDistanceM:     viper.GetFloat64("solver.maxDistanceM"),
		MinAGLM:          viper.GetFloat64("solver.minAglM"),
		ElevationTimeout: time.Duration(viper.GetInt("solver.elevationTimeoutMs")) * time.Millisecond,
	}
}

// Targeting builds the recompute throttle configuration.
func Targeting() targeting.Config {
	return targeting.Config{
		MinInterval:  time.Duration(viper.GetInt("targeting.minIntervalMs")) * time.Millisecond,
		MaxStaleness: time.Duration(viper.GetInt("targeting.maxStalenessMs")) * time.Millisecond,
		MinChangeDeg: viper.GetFloat64("targeting.minChangeDeg"),
	}
}

// Control builds the control-loop configuration, overlaying the tuned
// defaults with the operator-adjustable keys.
func Control() control.Config {
	cfg := control.DefaultConfig()
	cfg.MaxSpeed = viper.GetFloat64("control.maxSpeed")
	cfg.DecelBandDeg = viper.GetFloat64("control.decelBandDeg")
	cfg.GuardBandDeg = viper.GetFloat64("control.guardBandDeg")
	cfg.ConvergedDeg = viper.GetFloat64("control.convergedDeg")
	cfg.InvertPitch = viper.GetBool("control.invertPitch")
	return cfg
}

// SIYI builds the gimbal UDP client configuration on top of the tuned
// defaults.
func SIYI() gimbal.SIYIConfig {
	cfg := gimbal.DefaultSIYIConfig()
	cfg.Addr = viper.GetString("gimbal.address")
	cfg.StreamHz = viper.GetInt("gimbal.streamHz")
	cfg.StaleAfter = time.Duration(viper.GetInt("gimbal.staleAfterMs")) * time.Millisecond
	cfg.KeepaliveEvery = time.Duration(viper.GetInt("gimbal.keepaliveMs")) * time.Millisecond
	return cfg
}

// OTel builds the OpenTelemetry export configuration. The local log
// sink is attached by the caller.
func OTel() otel.Config {
	return otel.Config{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: time.Duration(viper.GetInt("otel.batchTimeoutMs")) * time.Millisecond,
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// Session builds the session recording configuration.
func Session() session.Config {
	return session.Config{
		Backend:        viper.GetString("session.backend"),
		OutputDir:      viper.GetString("session.outputDir"),
		CompressOutput: viper.GetBool("session.compressOutput"),
		SQLitePath:     viper.GetString("session.sqlitePath"),
		PostgresDSN:    viper.GetString("session.postgresDsn"),
	}
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetFloat64 returns a float config value.
func GetFloat64(key string) float64 {
	return viper.GetFloat64(key)
}
