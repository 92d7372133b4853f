// Command wisun-meter joins the smart meter's PAN over a Wi-SUN module
// and logs instantaneous power and cumulative energy forever.
package main

import (
	"flag"
	"log/syslog"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	lSyslog "github.com/sirupsen/logrus/hooks/syslog"

	"github.com/hnw/go-wisun/serial"
	"github.com/hnw/go-wisun/wisun"
)

type config struct {
	Device          string `toml:"device"`
	Baud            int    `toml:"baud"`
	IntervalSeconds int    `toml:"interval_seconds"`
}

// loadConfig reads the toml config file; a missing file just yields the
// defaults.
func loadConfig(path string) (*config, error) {
	cfg := &config{
		Device:          "/dev/ttyUSB0",
		Baud:            serial.DefaultBaud,
		IntervalSeconds: 10,
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logrus.Infof("config file %s not found, using defaults", path)
			return cfg, nil
		}
		return nil, errors.Wrapf(err, "failed to read config file %s", path)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to parse config file %s", path)
	}
	if cfg.IntervalSeconds <= 0 {
		cfg.IntervalSeconds = 10
	}
	return cfg, nil
}

func main() {
	var (
		optConfig   = flag.String("config", "wisun-meter.toml", "Path to config file")
		optLogLevel = flag.String("log-level", "info", "Log level (trace/debug/info/warn)")
		optSyslog   = flag.Bool("syslog", false, "Also log to syslog")
	)
	flag.Parse()

	level, err := logrus.ParseLevel(*optLogLevel)
	if err != nil {
		logrus.Fatalf("unknown log level %q", *optLogLevel)
	}
	logrus.SetLevel(level)
	if *optSyslog {
		hook, err := lSyslog.NewSyslogHook("", "", syslog.LOG_INFO|syslog.LOG_USER, "wisun-meter")
		if err != nil {
			logrus.Warnf("failed to connect to syslog: %v", err)
		} else {
			logrus.AddHook(hook)
		}
	}

	bid := os.Getenv("WISUN_BID")
	password := os.Getenv("WISUN_PASSWORD")
	if bid == "" || password == "" {
		logrus.Fatal("WISUN_BID and WISUN_PASSWORD must be set")
	}

	cfg, err := loadConfig(*optConfig)
	if err != nil {
		logrus.Fatal(err)
	}

	conn, err := serial.Open(cfg.Device, cfg.Baud)
	if err != nil {
		logrus.Fatal(err)
	}
	defer conn.Close()

	cli, err := wisun.NewClient(conn)
	if err != nil {
		logrus.Fatal(err)
	}
	ver, err := cli.GetVersion()
	if err != nil {
		logrus.Fatal(err)
	}
	logrus.Infof("module firmware version: %s", ver)

	if err := cli.Connect(bid, password); err != nil {
		logrus.Fatal(err)
	}
	logrus.Info("joined the PAN")

	interval := time.Duration(cfg.IntervalSeconds) * time.Second
	for i := 0; ; i++ {
		power, err := cli.GetPowerConsumption()
		if err != nil {
			logrus.Warnf("failed to read instantaneous power: %v", err)
		} else {
			logrus.Infof("instantaneous power: %d W", power)
		}
		// 積算電力量は変化が遅いので10回に1回だけ読む
		if i%10 == 0 {
			energy, err := cli.GetCumulativeElectricEnergy()
			if err != nil {
				logrus.Warnf("failed to read cumulative energy: %v", err)
			} else {
				logrus.Infof("cumulative energy: %.1f kWh", energy)
			}
		}
		time.Sleep(interval)
	}
}
