package indicator

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/require"

	"github.com/rbright/hifz/internal/config"
)

type recorder struct {
	mu      sync.Mutex
	cues    []cueKind
	notices []string
}

func (r *recorder) play(_ context.Context, kind cueKind) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cues = append(r.cues, kind)
	return nil
}

func (r *recorder) notify(_ context.Context, appName, summary, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, appName+"|"+summary+"|"+body)
	return errors.New("no notification daemon")
}

func newTestIndicator(cfg config.IndicatorConfig) (*Indicator, *recorder, *bytes.Buffer) {
	rec := &recorder{}
	var out bytes.Buffer
	ind := New(cfg, nil)
	ind.messages = localized(localeEnglish)
	ind.out = &out
	ind.play = rec.play
	ind.notify = rec.notify
	return ind, rec, &out
}

func TestCuesPlayWhenSoundEnabled(t *testing.T) {
	ind, rec, _ := newTestIndicator(config.IndicatorConfig{SoundEnable: true})

	ind.CueStart(context.Background())
	ind.Wait()
	ind.CueStop(context.Background())
	ind.Wait()
	ind.CueComplete(context.Background())
	ind.Wait()

	require.Equal(t, []cueKind{cueStart, cueStop, cueComplete}, rec.cues)
}

func TestCuesSilentWhenSoundDisabled(t *testing.T) {
	ind, rec, _ := newTestIndicator(config.IndicatorConfig{SoundEnable: false})

	ind.CueStart(context.Background())
	ind.CueComplete(context.Background())
	ind.Wait()

	require.Empty(t, rec.cues)
}

func TestNoticeWritesAndPlaysErrorCue(t *testing.T) {
	ind, rec, out := newTestIndicator(config.IndicatorConfig{SoundEnable: true})

	ind.Notice(context.Background(), NoticePermissionDenied, "")
	ind.Wait()

	require.Equal(t, "Microphone or speech service access was denied\n", out.String())
	require.Equal(t, []cueKind{cueError}, rec.cues)
	require.Empty(t, rec.notices)
}

func TestNoticeDesktopNotification(t *testing.T) {
	ind, rec, out := newTestIndicator(config.IndicatorConfig{DesktopNotify: true})

	ind.Notice(context.Background(), NoticeUnsupported, "no credentials")

	require.Contains(t, out.String(), "(no credentials)")
	require.Equal(t, []string{"hifz|hifz|Speech recognition is not available on this system (no credentials)"}, rec.notices)
}

func TestLocalizedMessages(t *testing.T) {
	require.Equal(t, localeArabic, resolveLocale("ar_SA.UTF-8"))
	require.Equal(t, localeEnglish, resolveLocale("en_US.UTF-8"))
	require.Equal(t, localeEnglish, resolveLocale(""))

	ar := localized(localeArabic)
	require.Equal(t, ar.permissionDenied, ar.notice(NoticePermissionDenied))
	require.Equal(t, ar.recognizerFailed, ar.notice(NoticeRecognizerFailed))
	require.NotEqual(t, localized(localeEnglish).unsupported, ar.unsupported)
}

func TestNotifyBodyIsCritical(t *testing.T) {
	body := notifyBody("hifz", "hifz", "Microphone access was denied")

	require.Len(t, body, 8)
	require.Equal(t, []any{"hifz", uint32(0), "dialog-warning", "hifz", "Microphone access was denied", []string{}}, body[:6])
	hints, ok := body[6].(map[string]dbus.Variant)
	require.True(t, ok)
	require.Equal(t, urgencyCritical, hints["urgency"].Value())
	require.Equal(t, int32(-1), body[7])
}

func TestDesktopNotifyWithoutSessionBus(t *testing.T) {
	t.Setenv("DBUS_SESSION_BUS_ADDRESS", "unix:path=/nonexistent/hifz-test-bus")

	err := desktopNotify(context.Background(), "hifz", "hifz", "test")
	require.ErrorContains(t, err, "desktop notify")
}
