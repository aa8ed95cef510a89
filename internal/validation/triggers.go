package validation

import (
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/rendis/gaiaflow/pkg/schema"
)

// cronParser accepts standard 5-field expressions and descriptors such as
// "@daily" or "@every 5m".
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseCron parses a schedule trigger's cron expression.
func ParseCron(expr string) (cron.Schedule, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse cron expression %q: %w", expr, err)
	}
	return sched, nil
}

func checkTriggers(wf *schema.Workflow) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	for i, tr := range wf.Triggers {
		path := fmt.Sprintf("triggers[%d]", i)
		switch tr.Type {
		case schema.TriggerManual, schema.TriggerWebhook:
		case schema.TriggerSchedule:
			expr := tr.ConfigString("cron")
			if expr == "" {
				result.AddError(path+".config.cron", schema.ErrCodeValidation,
					fmt.Sprintf("schedule trigger %d has no cron expression", i))
				continue
			}
			if _, err := ParseCron(expr); err != nil {
				result.AddError(path+".config.cron", schema.ErrCodeValidation,
					fmt.Sprintf("schedule trigger %d: %v", i, err))
			}
		case schema.TriggerEvent:
			if tr.ConfigString("event") == "" {
				result.AddError(path+".config.event", schema.ErrCodeValidation,
					fmt.Sprintf("event trigger %d has no event name", i))
			}
		default:
			result.AddError(path+".type", schema.ErrCodeValidation,
				fmt.Sprintf("trigger %d has unknown type %q", i, tr.Type))
		}
	}
	return result
}

// CronParser returns the parser used for schedule triggers, for wiring into
// a cron runner.
func CronParser() cron.Parser { return cronParser }
