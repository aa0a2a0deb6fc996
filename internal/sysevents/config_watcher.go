package sysevents

import (
	"context"
	"fmt"

	"github.com/wolfe-services/tachikoma-audit/audit"
)

// ConfigWatcher records category=configuration events whenever the
// application's own configuration changes, distinct from
// internal/auditconfig (which only loads this service's own config) —
// this records *other* components' config changes as audited events.
type ConfigWatcher struct {
	recorder  audit.Recorder
	component string
}

// NewConfigWatcher binds a ConfigWatcher to component's actor identity.
func NewConfigWatcher(recorder audit.Recorder, component string) *ConfigWatcher {
	return &ConfigWatcher{recorder: recorder, component: component}
}

// Changed records a config key's before/after values as one audit
// event. Values are recorded as given; callers must redact secrets
// before calling this.
func (w *ConfigWatcher) Changed(ctx context.Context, key, before, after string) error {
	e, err := audit.NewEvent(audit.Configuration, audit.ConfigUpdated).
		Actor(audit.SystemActor(w.component)).
		Target(audit.NewTarget("config_key", key)).
		Attribute("before", before).
		Attribute("after", after).
		Build()
	if err != nil {
		return fmt.Errorf("sysevents: build config-change event: %w", err)
	}
	_, err = w.recorder.Record(ctx, e)
	return err
}
