// Command mackerel-plugin-wisun reports smart-meter telemetry as
// mackerel metrics. Each plugin invocation opens the serial port, joins
// the PAN and reads once.
package main

import (
	"flag"
	"log/syslog"
	"os"

	mp "github.com/mackerelio/go-mackerel-plugin"
	"github.com/sirupsen/logrus"
	lSyslog "github.com/sirupsen/logrus/hooks/syslog"

	"github.com/hnw/go-wisun/serial"
	"github.com/hnw/go-wisun/wisun"
)

// WiSunPlugin mackerel plugin
type WiSunPlugin struct {
	Prefix         string
	RoutebID       string
	RoutebPassword string
	SerialPort     string
	Baud           int
}

// MetricKeyPrefix interface for PluginWithPrefix
func (p WiSunPlugin) MetricKeyPrefix() string {
	if p.Prefix == "" {
		p.Prefix = "smartmeter"
	}
	return p.Prefix
}

// GraphDefinition interface for mackerelplugin
func (p WiSunPlugin) GraphDefinition() map[string]mp.Graphs {
	return map[string]mp.Graphs{
		"power": {
			Label: "Electric power consumption [W]",
			Unit:  "integer",
			Metrics: []mp.Metrics{
				{Name: "value", Label: "Electric power"},
			},
		},
		"current": {
			Label: "Electric current [A]",
			Unit:  "float",
			Metrics: []mp.Metrics{
				{Name: "r", Label: "R-phase current", Stacked: true},
				{Name: "t", Label: "T-phase current", Stacked: true},
			},
		},
		"energy": {
			Label: "Cumulative electric energy [kWh]",
			Unit:  "float",
			Metrics: []mp.Metrics{
				{Name: "cumulative", Label: "Cumulative energy"},
			},
		},
	}
}

// FetchMetrics interface for mackerelplugin
func (p WiSunPlugin) FetchMetrics() (map[string]float64, error) {
	conn, err := serial.Open(p.SerialPort, p.Baud)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	cli, err := wisun.NewClient(conn)
	if err != nil {
		return nil, err
	}
	if err := cli.Connect(p.RoutebID, p.RoutebPassword); err != nil {
		return nil, err
	}

	metrics := make(map[string]float64)
	power, err := cli.GetPowerConsumption()
	if err != nil {
		return nil, err
	}
	metrics["value"] = float64(power)

	r, t, err := cli.GetInstantaneousCurrent()
	if err != nil {
		// 瞬時電流はメータによっては未実装なので電力だけ返す
		logrus.Warnf("failed to read instantaneous current: %v", err)
	} else {
		metrics["r"] = r
		metrics["t"] = t
	}

	energy, err := cli.GetCumulativeElectricEnergy()
	if err != nil {
		logrus.Warnf("failed to read cumulative energy: %v", err)
	} else {
		metrics["cumulative"] = energy
	}

	return metrics, nil
}

func main() {
	var (
		optPrefix         = flag.String("metric-key-prefix", "smartmeter", "Metric key prefix")
		optTempfile       = flag.String("tempfile", "", "Temp file name")
		optRoutebID       = flag.String("id", os.Getenv("WISUN_BID"), "Route B ID")
		optRoutebPassword = flag.String("password", os.Getenv("WISUN_PASSWORD"), "Route B password")
		optSerialPort     = flag.String("device", "", "Path to serial port")
		optBaud           = flag.Int("baud", serial.DefaultBaud, "Baud rate")
		optDebug          = flag.Bool("debug", false, "debug mode")
	)
	flag.Parse()

	if *optDebug {
		logrus.SetLevel(logrus.TraceLevel)
	} else if hook, err := lSyslog.NewSyslogHook("", "", syslog.LOG_NOTICE|syslog.LOG_USER, "mackerel-plugin-wisun"); err == nil {
		logrus.AddHook(hook)
	}

	p := WiSunPlugin{
		Prefix:         *optPrefix,
		RoutebID:       *optRoutebID,
		RoutebPassword: *optRoutebPassword,
		SerialPort:     *optSerialPort,
		Baud:           *optBaud,
	}
	plugin := mp.NewMackerelPlugin(p)
	plugin.Tempfile = *optTempfile
	plugin.Run()
}
