package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/omplayer/server/internal/app"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
	usage        string
}

var (
	port = configVar[int]{
		envKey:       "SERVER_PORT",
		flagKey:      "port",
		defaultValue: 80,
		usage:        "Server port",
	}
	host = configVar[string]{
		envKey:       "SERVER_HOST",
		flagKey:      "host",
		defaultValue: "0.0.0.0",
		usage:        "Server host",
	}
	logLevel = configVar[string]{
		envKey:       "SERVER_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
		usage:        "Logging level",
	}
	redisPort = configVar[int]{
		envKey:       "REDIS_PORT",
		flagKey:      "redis-port",
		defaultValue: 6379,
		usage:        "Redis port",
	}
	redisHost = configVar[string]{
		envKey:       "REDIS_HOST",
		flagKey:      "redis-host",
		defaultValue: "localhost",
		usage:        "Redis host",
	}
	redisPassword = configVar[string]{
		envKey:       "REDIS_PASSWORD",
		flagKey:      "redis-password",
		defaultValue: "",
		usage:        "Redis password",
	}
	snapshotExp = configVar[time.Duration]{
		envKey:       "SERVER_SNAPSHOT_EXP",
		flagKey:      "snapshot-exp",
		defaultValue: 24 * time.Hour,
		usage:        "Lifetime of a persisted player snapshot",
	}
	seekStep = configVar[float64]{
		envKey:       "PLAYER_SEEK_STEP",
		flagKey:      "seek-step",
		defaultValue: 5,
		usage:        "Seconds skipped by the arrow keys",
	}
	timeRefreshInterval = configVar[time.Duration]{
		envKey:       "PLAYER_TIME_REFRESH_INTERVAL",
		flagKey:      "time-refresh-interval",
		defaultValue: 250 * time.Millisecond,
		usage:        "Minimum delay between two time display updates",
	}
	tickInterval = configVar[time.Duration]{
		envKey:       "PLAYER_TICK_INTERVAL",
		flagKey:      "tick-interval",
		defaultValue: 250 * time.Millisecond,
		usage:        "Playback clock resolution",
	}
	nativeHLS = configVar[bool]{
		envKey:       "PLAYER_NATIVE_HLS",
		flagKey:      "native-hls",
		defaultValue: false,
		usage:        "Surface plays HLS natively",
	}
	mse = configVar[bool]{
		envKey:       "PLAYER_MSE",
		flagKey:      "mse",
		defaultValue: true,
		usage:        "Script driven HLS and DASH backends are available",
	}
	ads = configVar[bool]{
		envKey:       "PLAYER_ADS",
		flagKey:      "ads",
		defaultValue: true,
		usage:        "VAST ads are available",
	}
	probeTimeout = configVar[time.Duration]{
		envKey:       "PLAYER_PROBE_TIMEOUT",
		flagKey:      "probe-timeout",
		defaultValue: 10 * time.Second,
		usage:        "Timeout for manifest, metadata and captions requests",
	}
	defaultDuration = configVar[float64]{
		envKey:       "PLAYER_DEFAULT_DURATION",
		flagKey:      "default-duration",
		defaultValue: 0,
		usage:        "Duration assumed when a progressive source reports none, 0 for unbounded",
	}
)

func bind[T any](v configVar[T]) {
	viper.BindEnv(v.flagKey, v.envKey)
	viper.SetDefault(v.flagKey, v.defaultValue)
}

func loadAppConfig() *app.AppConfig {
	pflag.Int(port.flagKey, port.defaultValue, port.usage)
	pflag.String(host.flagKey, host.defaultValue, host.usage)
	pflag.String(logLevel.flagKey, logLevel.defaultValue, logLevel.usage)
	pflag.Int(redisPort.flagKey, redisPort.defaultValue, redisPort.usage)
	pflag.String(redisHost.flagKey, redisHost.defaultValue, redisHost.usage)
	pflag.String(redisPassword.flagKey, redisPassword.defaultValue, redisPassword.usage)
	pflag.Duration(snapshotExp.flagKey, snapshotExp.defaultValue, snapshotExp.usage)
	pflag.Float64(seekStep.flagKey, seekStep.defaultValue, seekStep.usage)
	pflag.Duration(timeRefreshInterval.flagKey, timeRefreshInterval.defaultValue, timeRefreshInterval.usage)
	pflag.Duration(tickInterval.flagKey, tickInterval.defaultValue, tickInterval.usage)
	pflag.Bool(nativeHLS.flagKey, nativeHLS.defaultValue, nativeHLS.usage)
	pflag.Bool(mse.flagKey, mse.defaultValue, mse.usage)
	pflag.Bool(ads.flagKey, ads.defaultValue, ads.usage)
	pflag.Duration(probeTimeout.flagKey, probeTimeout.defaultValue, probeTimeout.usage)
	pflag.Float64(defaultDuration.flagKey, defaultDuration.defaultValue, defaultDuration.usage)
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	bind(port)
	bind(host)
	bind(logLevel)
	bind(redisPort)
	bind(redisHost)
	bind(redisPassword)
	bind(snapshotExp)
	bind(seekStep)
	bind(timeRefreshInterval)
	bind(tickInterval)
	bind(nativeHLS)
	bind(mse)
	bind(ads)
	bind(probeTimeout)
	bind(defaultDuration)

	return &app.AppConfig{
		Host:                viper.GetString(host.flagKey),
		Port:                viper.GetInt(port.flagKey),
		LogLevel:            viper.GetString(logLevel.flagKey),
		RedisPort:           viper.GetInt(redisPort.flagKey),
		RedisHost:           viper.GetString(redisHost.flagKey),
		RedisPassword:       viper.GetString(redisPassword.flagKey),
		SnapshotExp:         viper.GetDuration(snapshotExp.flagKey),
		SeekStep:            viper.GetFloat64(seekStep.flagKey),
		TimeRefreshInterval: viper.GetDuration(timeRefreshInterval.flagKey),
		TickInterval:        viper.GetDuration(tickInterval.flagKey),
		ProbeTimeout:        viper.GetDuration(probeTimeout.flagKey),
		DefaultDuration:     viper.GetFloat64(defaultDuration.flagKey),
		NativeHLS:           viper.GetBool(nativeHLS.flagKey),
		MSE:                 viper.GetBool(mse.flagKey),
		Ads:                 viper.GetBool(ads.flagKey),
	}
}

func main() {
	ctx := context.Background()

	appConfig := loadAppConfig()

	jsonConfig, _ := json.MarshalIndent(appConfig, "", "  ")
	fmt.Printf("starting app with config: %s\n", jsonConfig)

	log.Fatal(app.Run(ctx, appConfig))
}
