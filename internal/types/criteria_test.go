package types

import "testing"

func TestTimeWindow_ContainsHour(t *testing.T) {
	tests := []struct {
		name   string
		window TimeWindow
		hour   int
		want   bool
	}{
		{"inside", TimeWindow{"02:00", "05:00"}, 3, true},
		{"start inclusive", TimeWindow{"02:00", "05:00"}, 2, true},
		{"end inclusive", TimeWindow{"02:00", "05:00"}, 5, true},
		{"outside", TimeWindow{"02:00", "05:00"}, 6, false},
		{"wrapping late", TimeWindow{"22:00", "05:00"}, 23, true},
		{"wrapping early", TimeWindow{"22:00", "05:00"}, 2, true},
		{"wrapping midday", TimeWindow{"22:00", "05:00"}, 12, false},
		{"minutes ignored", TimeWindow{"06:45", "07:10"}, 6, true},
		{"invalid window", TimeWindow{"6am", "08:00"}, 7, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.window.ContainsHour(tt.hour); got != tt.want {
				t.Errorf("%s.ContainsHour(%d) = %v, want %v", tt.window, tt.hour, got, tt.want)
			}
		})
	}

	if !(TimeWindow{"22:00", "05:00"}).Wraps() || (TimeWindow{"02:00", "05:00"}).Wraps() {
		t.Error("Wraps is wrong")
	}
}

func TestTimeWindow_Hours(t *testing.T) {
	bad := []TimeWindow{
		{"", "05:00"},
		{"24:00", "05:00"},
		{"02:00", "05:60"},
		{"02", "05:00"},
		{"aa:00", "05:00"},
	}
	for _, w := range bad {
		if _, _, err := w.Hours(); err == nil {
			t.Errorf("Hours(%s) expected error", w)
		}
	}

	start, end, err := TimeWindow{" 02:30", "05:00"}.Hours()
	if err != nil || start != 2 || end != 5 {
		t.Errorf("Hours = %d, %d, %v", start, end, err)
	}
}

func TestCriteria_Validate(t *testing.T) {
	if err := DefaultCriteria().Validate(); err != nil {
		t.Fatalf("defaults must be valid: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Criteria)
		code   ErrorCode
	}{
		{"precip above 100", func(c *Criteria) { c.MaxPrecipitationProbability = 101 }, ErrCodeValidationThresholdRange},
		{"negative coverage", func(c *Criteria) { c.MinCloudCoverClearPeriod = -1 }, ErrCodeValidationThresholdRange},
		{"negative pressure", func(c *Criteria) { c.MinPressureChange = -0.5 }, ErrCodeValidationThresholdRange},
		{"bad clear window", func(c *Criteria) { c.ClearSkyWindow.Start = "2am" }, ErrCodeValidationTimeWindow},
		{"bad prediction window", func(c *Criteria) { c.PredictionWindow.End = "25:00" }, ErrCodeValidationTimeWindow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultCriteria()
			tt.mutate(&c)
			if err := c.Validate(); !HasCode(err, tt.code) {
				t.Errorf("Validate() = %v, want code %s", err, tt.code)
			}
		})
	}
}

func TestCriteria_Merge(t *testing.T) {
	base := DefaultCriteria()
	if got := base.Merge(nil); got != base {
		t.Errorf("Merge(nil) changed criteria: %+v", got)
	}

	precip := 35.0
	window := TimeWindow{"05:00", "07:00"}
	got := base.Merge(&CriteriaOverrides{MaxPrecipitationProbability: &precip, PredictionWindow: &window})

	if got.MaxPrecipitationProbability != 35 || got.PredictionWindow != window {
		t.Errorf("overrides not applied: %+v", got)
	}
	if got.MinCloudCoverClearPeriod != base.MinCloudCoverClearPeriod || got.ClearSkyWindow != base.ClearSkyWindow {
		t.Errorf("unspecified fields changed: %+v", got)
	}
	if base.MaxPrecipitationProbability != 20 {
		t.Error("Merge mutated the receiver")
	}
}
