// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package config

import (
	stderrors "errors"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/go-core-stack/iothrottle/errors"
	"github.com/go-core-stack/iothrottle/throttle"
	"github.com/go-core-stack/iothrottle/utils"
)

// EnvPrefix is prepended to environment overrides, e.g.
// IOTHROTTLE_LISTEN
const EnvPrefix = "IOTHROTTLE"

// DeviceConfig carries the throttling limits of one device, named after
// the QEMU throttling options. A zero rate leaves the limit disabled.
type DeviceConfig struct {
	Size int `mapstructure:"size" json:"size,omitempty"`

	BPS      float64 `mapstructure:"bps" json:"bps"`
	BPSMax   float64 `mapstructure:"bps_max" json:"bps_max"`
	BPSRd    float64 `mapstructure:"bps_rd" json:"bps_rd"`
	BPSRdMax float64 `mapstructure:"bps_rd_max" json:"bps_rd_max"`
	BPSWr    float64 `mapstructure:"bps_wr" json:"bps_wr"`
	BPSWrMax float64 `mapstructure:"bps_wr_max" json:"bps_wr_max"`

	IOPS      float64 `mapstructure:"iops" json:"iops"`
	IOPSMax   float64 `mapstructure:"iops_max" json:"iops_max"`
	IOPSRd    float64 `mapstructure:"iops_rd" json:"iops_rd"`
	IOPSRdMax float64 `mapstructure:"iops_rd_max" json:"iops_rd_max"`
	IOPSWr    float64 `mapstructure:"iops_wr" json:"iops_wr"`
	IOPSWrMax float64 `mapstructure:"iops_wr_max" json:"iops_wr_max"`

	IOPSSize uint64 `mapstructure:"iops_size" json:"iops_size"`
}

// limits pairs every bucket with its rate and burst fields
func (d *DeviceConfig) limits() [throttle.BucketsCount][2]*float64 {
	return [throttle.BucketsCount][2]*float64{
		throttle.BPSTotal: {&d.BPS, &d.BPSMax},
		throttle.BPSRead:  {&d.BPSRd, &d.BPSRdMax},
		throttle.BPSWrite: {&d.BPSWr, &d.BPSWrMax},
		throttle.OPSTotal: {&d.IOPS, &d.IOPSMax},
		throttle.OPSRead:  {&d.IOPSRd, &d.IOPSRdMax},
		throttle.OPSWrite: {&d.IOPSWr, &d.IOPSWrMax},
	}
}

// ToThrottle converts the limits into a throttle config, the result is
// not validated
func (d DeviceConfig) ToThrottle() *throttle.Config {
	cfg := &throttle.Config{OpSize: d.IOPSSize}
	for kind, l := range d.limits() {
		cfg.SetLimit(throttle.BucketKind(kind), *l[0], *l[1])
	}
	return cfg
}

// FromThrottle returns the limits of cfg, bucket levels are dropped
func FromThrottle(cfg *throttle.Config) DeviceConfig {
	d := DeviceConfig{IOPSSize: cfg.OpSize}
	for kind, l := range d.limits() {
		*l[0] = cfg.Buckets[kind].Rate
		*l[1] = cfg.Buckets[kind].Burst
	}
	return d
}

// Config is the configuration of the throttling service, it can be
// reloaded at runtime
type Config struct {
	Listen   string                  `mapstructure:"listen"`
	Devices  map[string]DeviceConfig `mapstructure:"devices"`
	LoadTime time.Time               `mapstructure:"-"`
}

// DeviceNames returns the sorted names of the configured devices
func (c *Config) DeviceNames() []string {
	names := make([]string, 0, len(c.Devices))
	for name := range c.Devices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks the limits of every device, the error of the first
// invalid device in name order is returned
func (c *Config) Validate() error {
	for _, name := range c.DeviceNames() {
		if !utils.IsValidDeviceName(name) {
			return errors.Wrapf(errors.InvalidArgument, "invalid device name %q", name)
		}
		dev := c.Devices[name]
		if err := dev.ToThrottle().Validate(); err != nil {
			return errors.Wrapf(errors.GetErrCode(err), "device %q: %s", name, err)
		}
	}
	return nil
}

func setup(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("listen", "")
}

func decode(v *viper.Viper, cfg *Config) error {
	var fresh Config
	if err := v.Unmarshal(&fresh); err != nil {
		return errors.Wrapf(errors.InvalidArgument, "failed to decode config: %s", err)
	}
	if err := fresh.Validate(); err != nil {
		return err
	}
	fresh.LoadTime = time.Now()
	*cfg = fresh
	return nil
}

// Load reads the config file cfgName of type cfgType found in cfgPath
// into cfg. cfg is left untouched when the file is invalid.
func Load(v *viper.Viper, cfgPath, cfgType, cfgName string, cfg *Config) error {
	setup(v)
	v.AddConfigPath(cfgPath)
	v.SetConfigType(cfgType)
	v.SetConfigName(cfgName)

	err := v.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if stderrors.As(err, &notFound) {
			return errors.Wrapf(errors.NotFound, "config %s not found in %s", cfgName, cfgPath)
		}
		return errors.Wrapf(errors.InvalidArgument, "failed to read config: %s", err)
	}

	return decode(v, cfg)
}

// Watch re-reads the config whenever the file backing v changes and
// hands every valid revision to fn. Invalid revisions are logged and
// skipped.
func Watch(v *viper.Viper, fn func(*Config)) {
	v.OnConfigChange(func(e fsnotify.Event) {
		applyReload(v, e, fn)
	})
	v.WatchConfig()
}

func applyReload(v *viper.Viper, e fsnotify.Event, fn func(*Config)) {
	if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
		return
	}
	var cfg Config
	if err := decode(v, &cfg); err != nil {
		log.Printf("[ERROR][Config] ignoring update of %s: %s", e.Name, err)
		return
	}
	log.Printf("[INFO][Config] reloaded %s, %d devices", e.Name, len(cfg.Devices))
	fn(&cfg)
}
