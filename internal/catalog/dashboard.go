package catalog

// MissionStatus tells whether a mission can be played yet.
type MissionStatus string

const (
	MissionAvailable MissionStatus = "available"
	MissionLocked    MissionStatus = "locked"
)

// Mission is one stop on the dashboard's adventure map.
type Mission struct {
	ID          string        `json:"id"`
	Glyph       string        `json:"glyph"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Status      MissionStatus `json:"status"`
	Recommended bool          `json:"recommended"`
	Progress    int           `json:"progress"` // percent
}

// Missions returns the mission map. Only the first mission is playable; the
// others unlock in order.
func Missions() []Mission {
	return []Mission{
		{
			ID:          "selva-sonidos",
			Glyph:       "🌴",
			Title:       "La Selva de los Sonidos",
			Description: `Practica palabras con "R" y "L" junto al Jaguar.`,
			Status:      MissionAvailable,
			Recommended: true,
			Progress:    33,
		},
		{
			ID:          "mercado-magico",
			Glyph:       "🏪",
			Title:       "El Mercado Mágico",
			Description: "Aprende nuevas palabras de comida mexicana.",
			Status:      MissionLocked,
		},
		{
			ID:          "fiesta-palabras",
			Glyph:       "🎉",
			Title:       "La Fiesta de las Palabras",
			Description: "Forma oraciones y cuenta historias divertidas.",
			Status:      MissionLocked,
		},
		{
			ID:          "castillo-cuentos",
			Glyph:       "🏰",
			Title:       "El Castillo de los Cuentos",
			Description: "Escucha y comprende historias mágicas.",
			Status:      MissionLocked,
		},
	}
}

// Patient identifies the child the panel describes.
type Patient struct {
	Name        string `json:"name"`
	Age         int    `json:"age"`
	LastSession string `json:"last_session"`
}

// Stats are the headline numbers of the progress panel.
type Stats struct {
	AccuracyPercent    int `json:"accuracy_percent"`
	AccuracyChange     int `json:"accuracy_change"`
	StreakDays         int `json:"streak_days"`
	AverageTimeSeconds int `json:"average_time_seconds"`
}

// Area is the mastery level of one language area.
type Area struct {
	Name    string `json:"name"`
	Percent int    `json:"percent"`
	Label   string `json:"label"`
	Color   string `json:"color"`
}

// Note is a titled block of advice.
type Note struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	Recommendation string `json:"recommendation,omitempty"`
}

// ProgressPanel is the clinician-facing summary.
type ProgressPanel struct {
	Patient Patient `json:"patient"`
	Stats   Stats   `json:"stats"`
	Areas   []Area  `json:"areas"`
	Focus   Note    `json:"focus"`
	HomeTip Note    `json:"home_tip"`
}

// Progress returns the progress panel. The figures are fixed until session
// history is aggregated from the event log.
func Progress() ProgressPanel {
	return ProgressPanel{
		Patient: Patient{Name: "Leo", Age: 6, LastSession: "Hoy"},
		Stats: Stats{
			AccuracyPercent:    85,
			AccuracyChange:     5,
			StreakDays:         4,
			AverageTimeSeconds: 15,
		},
		Areas: []Area{
			{Name: "Semántica (Vocabulario)", Percent: 90, Label: "Excelente", Color: "green"},
			{Name: "Fonología (Pronunciación)", Percent: 65, Label: "En Progreso", Color: "orange"},
			{Name: "Morfosintaxis (Oraciones)", Percent: 78, Label: "Bueno", Color: "blue"},
		},
		Focus: Note{
			Title:          "Foco de Atención",
			Description:    `Se detectaron dificultades recurrentes con el fonema /r/ vibrante (ej. "ratón", "carro") y combinaciones trabadas.`,
			Recommendation: "Ver ejercicios recomendados",
		},
		HomeTip: Note{
			Title:       "Tip para Casa 🏠",
			Description: `Aprovecha la hora de la comida para practicar palabras como "Tortilla" y "Frijol", reforzando lo aprendido en la app.`,
		},
	}
}
