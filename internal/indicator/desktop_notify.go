package indicator

import (
	"context"
	"errors"
	"fmt"

	"github.com/godbus/dbus/v5"
)

const (
	notifyDest   = "org.freedesktop.Notifications"
	notifyPath   = dbus.ObjectPath("/org/freedesktop/Notifications")
	notifyMethod = notifyDest + ".Notify"
	notifyIcon   = "dialog-warning"

	// urgencyCritical keeps the notice on screen until dismissed.
	urgencyCritical byte = 2
	// expireDefault lets the notification server pick the timeout.
	expireDefault int32 = -1
)

// desktopNotify calls Notify on the session bus.
func desktopNotify(ctx context.Context, appName, summary, body string) error {
	conn, err := dbus.ConnectSessionBus(dbus.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("desktop notify: connect session bus: %w", err)
	}
	defer func() { _ = conn.Close() }()

	call := conn.Object(notifyDest, notifyPath).CallWithContext(ctx, notifyMethod, 0, notifyBody(appName, summary, body)...)
	if call.Err != nil {
		return fmt.Errorf("desktop notify: %w", call.Err)
	}
	return nil
}

// CheckNotifications reports whether a notification server owns its name on
// the session bus.
func CheckNotifications(ctx context.Context) error {
	conn, err := dbus.ConnectSessionBus(dbus.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("connect session bus: %w", err)
	}
	defer func() { _ = conn.Close() }()

	var owned bool
	if err := conn.BusObject().CallWithContext(ctx, "org.freedesktop.DBus.NameHasOwner", 0, notifyDest).Store(&owned); err != nil {
		return fmt.Errorf("query %s: %w", notifyDest, err)
	}
	if !owned {
		return errors.New("no notification server on the session bus")
	}
	return nil
}

// notifyBody is Notify(app, replaces_id, icon, summary, body, actions, hints, expire_timeout).
func notifyBody(appName, summary, body string) []any {
	return []any{
		appName,
		uint32(0),
		notifyIcon,
		summary,
		body,
		[]string{},
		map[string]dbus.Variant{"urgency": dbus.MakeVariant(urgencyCritical)},
		expireDefault,
	}
}
