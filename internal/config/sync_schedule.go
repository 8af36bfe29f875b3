package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// SyncSchedule controls the periodic provider sync. It is hot-reloaded from sync.yml.
type SyncSchedule struct {
	Interval     time.Duration `mapstructure:"interval"`
	LookbackDays int           `mapstructure:"lookbackDays"`
	Resources    []string      `mapstructure:"resources"`
	JobTimeout   time.Duration `mapstructure:"jobTimeout"`
}

var knownSyncResources = map[string]struct{}{
	"phone-numbers": {},
	"calls":         {},
	"recordings":    {},
	"reports":       {},
	"sms":           {},
	"extensions":    {},
}

func DefaultSyncSchedule() SyncSchedule {
	return SyncSchedule{
		Interval:     15 * time.Minute,
		LookbackDays: 1,
		Resources:    []string{"calls", "recordings"},
		JobTimeout:   5 * time.Minute,
	}
}

type SyncScheduleHolder struct {
	current atomic.Value // holds SyncSchedule
}

// NewStaticSyncScheduleHolder returns a holder that never reloads.
func NewStaticSyncScheduleHolder(schedule SyncSchedule) *SyncScheduleHolder {
	holder := &SyncScheduleHolder{}
	holder.current.Store(schedule)
	return holder
}

func NewSyncScheduleHolder() (*SyncScheduleHolder, error) {
	v := viper.New()

	v.SetConfigName("sync")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/switchboard")
	v.AddConfigPath(".")

	v.SetEnvPrefix("SWITCHBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultSyncSchedule()
	v.SetDefault("sync.interval", defaults.Interval)
	v.SetDefault("sync.lookbackDays", defaults.LookbackDays)
	v.SetDefault("sync.resources", defaults.Resources)
	v.SetDefault("sync.jobTimeout", defaults.JobTimeout)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	var schedule SyncSchedule
	if err := v.UnmarshalKey("sync", &schedule); err != nil {
		return nil, err
	}
	if err := validateSyncSchedule(schedule); err != nil {
		return nil, err
	}

	holder := NewStaticSyncScheduleHolder(schedule)
	if !fileFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated SyncSchedule
		if err := v.UnmarshalKey("sync", &updated); err != nil {
			log.Printf("[sync-config] reload failed: %v", err)
			return
		}
		if err := validateSyncSchedule(updated); err != nil {
			log.Printf("[sync-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[sync-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *SyncScheduleHolder) Get() SyncSchedule {
	return h.current.Load().(SyncSchedule)
}

func validateSyncSchedule(s SyncSchedule) error {
	if s.Interval < time.Minute {
		return errors.New("sync.interval must be at least 1m")
	}
	if s.LookbackDays < 0 || s.LookbackDays > 31 {
		return errors.New("sync.lookbackDays must be between 0 and 31")
	}
	for _, r := range s.Resources {
		if _, ok := knownSyncResources[strings.TrimSpace(r)]; !ok {
			return errors.New("sync.resources contains unknown resource " + r)
		}
	}
	return nil
}
