// Package notify shows desktop notifications for the practice driver.
package notify

import (
	"fmt"

	"github.com/gen2brain/beeep"
)

const appName = "Habla Conmigo"

// Notifier sends desktop notifications. A disabled Notifier is a no-op.
type Notifier struct {
	enabled bool
	send    func(title, message, icon string) error
}

// New creates a Notifier.
func New(enabled bool) *Notifier {
	return &Notifier{enabled: enabled, send: beeep.Notify}
}

// SetEnabled turns notifications on or off.
func (n *Notifier) SetEnabled(enabled bool) {
	n.enabled = enabled
}

// Completed announces the end of a practice session.
func (n *Notifier) Completed(score, total int) {
	n.notify("¡Sesión completada!", fmt.Sprintf("Puntuación: %d de %d", score, total))
}

// Disconnected warns that the speech service went away.
func (n *Notifier) Disconnected() {
	n.notify("Sin conexión", "El servidor de voz no responde. Puedes seguir tocando las respuestas.")
}

// Reconnected reports that voice practice is available again.
func (n *Notifier) Reconnected() {
	n.notify("Conectado", "El servidor de voz está disponible.")
}

// Error shows a failure message.
func (n *Notifier) Error(msg string) {
	if len(msg) > 100 {
		msg = msg[:100] + "..."
	}
	n.notify("Error", msg)
}

func (n *Notifier) notify(title, message string) {
	if !n.enabled {
		return
	}
	// notification failures are not fatal
	_ = n.send(appName+": "+title, message, "")
}
