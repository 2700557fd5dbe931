// Package device drives an attached Android handset through adb.
package device

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	apperrors "github.com/openclaw/dial-agent-go/internal/errors"
	"github.com/openclaw/dial-agent-go/internal/model"
	"github.com/openclaw/dial-agent-go/internal/util"
)

// Runner executes a command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

var (
	callStatePattern = regexp.MustCompile(`mCallState=(\d)`)
	dialableChars    = regexp.MustCompile(`[^0-9+*#]`)
)

// ADB is the platform adapter: dialer, telephony status source, brand probe and
// activity launcher.
type ADB struct {
	path   string
	serial string
	run    Runner
}

func NewADB(path, serial string) *ADB {
	return NewADBWithRunner(path, serial, execRunner)
}

func NewADBWithRunner(path, serial string, run Runner) *ADB {
	if path == "" {
		path = "adb"
	}
	return &ADB{path: path, serial: serial, run: run}
}

func (a *ADB) shell(ctx context.Context, args ...string) (string, error) {
	full := make([]string, 0, len(args)+3)
	if a.serial != "" {
		full = append(full, "-s", a.serial)
	}
	full = append(full, "shell")
	full = append(full, args...)

	out, err := a.run(ctx, a.path, full...)
	if err != nil {
		return string(out), fmt.Errorf("adb %s: %w (output: %s)", args[0], err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

// SanitizeNumber keeps only characters the dialer accepts.
func SanitizeNumber(phone string) string {
	return dialableChars.ReplaceAllString(phone, "")
}

// Dial places a call through the native dialer.
func (a *ADB) Dial(ctx context.Context, phoneNumber string) error {
	number := SanitizeNumber(phoneNumber)
	if number == "" {
		return apperrors.InvalidInput("phoneNumber", "no dialable digits")
	}

	out, err := a.shell(ctx, "am", "start", "-a", "android.intent.action.CALL", "-d", "tel:"+number)
	if err == nil {
		err = amError(out)
	}
	if err != nil {
		return apperrors.Device("dial", err)
	}

	log.Info().Str("component", "device").Str("phone", util.MaskPhone(number)).Msg("dial intent sent")
	return nil
}

// CallState reads the telephony registry. With several SIM slots the highest
// reported state wins, so an active call on any slot is visible.
func (a *ADB) CallState(ctx context.Context) (model.TelephonyStatus, error) {
	out, err := a.shell(ctx, "dumpsys", "telephony.registry")
	if err != nil {
		return model.TelephonyIdle, apperrors.Device("call state", err)
	}
	return ParseCallState(out)
}

func ParseCallState(dump string) (model.TelephonyStatus, error) {
	matches := callStatePattern.FindAllStringSubmatch(dump, -1)
	if len(matches) == 0 {
		return model.TelephonyIdle, apperrors.Device("call state", errors.New("mCallState not found"))
	}

	state := model.TelephonyIdle
	for _, m := range matches {
		n, _ := strconv.Atoi(m[1])
		s := model.TelephonyStatus(n)
		if s > model.TelephonyOffhook {
			continue
		}
		if s > state {
			state = s
		}
	}
	return state, nil
}

// Brand returns the lower-cased ro.product.brand property.
func (a *ADB) Brand(ctx context.Context) (string, error) {
	out, err := a.shell(ctx, "getprop", "ro.product.brand")
	if err != nil {
		return "", apperrors.Device("brand", err)
	}
	return strings.ToLower(strings.TrimSpace(out)), nil
}

// StartActivity launches a component or an action intent.
func (a *ADB) StartActivity(ctx context.Context, action model.PlatformAction) error {
	args := []string{"am", "start"}
	switch {
	case action.Component != "":
		args = append(args, "-n", action.Component)
	case action.Action != "":
		args = append(args, "-a", action.Action)
		if action.Data != "" {
			args = append(args, "-d", action.Data)
		}
	default:
		return apperrors.InvalidInput("action", "empty platform action")
	}

	out, err := a.shell(ctx, args...)
	if err == nil {
		err = amError(out)
	}
	if err != nil {
		return apperrors.Device("start activity", err)
	}
	return nil
}

// am exits 0 even when the intent cannot be resolved.
func amError(out string) error {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "Error") {
			return errors.New(line)
		}
	}
	return nil
}
