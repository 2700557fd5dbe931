package recording

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/openclaw/dial-agent-go/internal/model"
)

const (
	actionCallSettings   = "android.settings.CALL_SETTINGS"
	actionAppDetails     = "android.settings.APPLICATION_DETAILS_SETTINGS"
	actionDial           = "android.intent.action.DIAL"
	actionSystemSettings = "android.settings.SETTINGS"
)

// ActionRunner starts one platform action on the device.
type ActionRunner interface {
	StartActivity(ctx context.Context, action model.PlatformAction) error
}

type vendorActions struct {
	brands  []string
	actions []model.PlatformAction
}

var enableRecordingActions = []vendorActions{
	{
		brands: []string{"xiaomi", "redmi"},
		actions: []model.PlatformAction{
			{Component: "com.android.phone/com.android.phone.settings.CallRecordingSettingsActivity"},
			{Component: "com.miui.securitycenter/com.miui.permcenter.autostart.AutoStartManagementActivity"},
			{Action: actionAppDetails, Data: "package:com.android.phone"},
			{Action: actionCallSettings},
		},
	},
	{
		brands: []string{"huawei", "honor"},
		actions: []model.PlatformAction{
			{Component: "com.huawei.systemmanager/com.huawei.systemmanager.optimize.process.ProtectActivity"},
			{Action: actionDial},
			{Action: actionCallSettings},
		},
	},
	{
		brands: []string{"oppo", "realme"},
		actions: []model.PlatformAction{
			{Component: "com.coloros.phonemanager/com.coloros.phonemanager.record.CallRecordSettingActivity"},
			{Action: actionAppDetails, Data: "package:com.android.dialer"},
			{Action: actionCallSettings},
		},
	},
	{
		brands: []string{"vivo", "iqoo"},
		actions: []model.PlatformAction{
			{Component: "com.vivo.permissionmanager/com.vivo.permissionmanager.activity.BgStartUpManagerActivity"},
			{Action: actionDial},
			{Action: actionCallSettings},
		},
	},
}

var genericEnableActions = []model.PlatformAction{
	{Action: actionCallSettings},
	{Action: actionDial},
	{Action: actionSystemSettings},
}

// EnableActions returns the ordered attempts for brand, falling back to generic settings screens.
func EnableActions(brand string) []model.PlatformAction {
	for _, v := range enableRecordingActions {
		if brandMatches(brand, v.brands) {
			return v.actions
		}
	}
	return genericEnableActions
}

// Enabler opens the screen where the user can switch on system call recording.
type Enabler struct {
	runner ActionRunner
	brand  string
}

func NewEnabler(runner ActionRunner, brand string) *Enabler {
	return &Enabler{runner: runner, brand: brand}
}

// TryEnableRecording runs the brand's actions in order and reports true on the first that starts.
func (e *Enabler) TryEnableRecording(ctx context.Context) bool {
	for i, action := range EnableActions(e.brand) {
		if err := e.runner.StartActivity(ctx, action); err != nil {
			log.Debug().
				Err(err).
				Str("component", "recording").
				Int("attempt", i+1).
				Stringer("action", action).
				Msg("recording settings attempt failed")
			continue
		}
		log.Info().
			Str("component", "recording").
			Str("brand", e.brand).
			Int("attempt", i+1).
			Stringer("action", action).
			Msg("recording settings opened")
		return true
	}
	return false
}
