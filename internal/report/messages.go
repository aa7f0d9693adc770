package report

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys.
const (
	keyPageTitle        = "page.title"
	keyFormLabel        = "form.label"
	keyFormSubmit       = "form.submit"
	keySafetyNote       = "form.safety"
	keyResultsTitle     = "results.title"
	keyResultsBags      = "results.bags"
	keyResultsVolume    = "results.volume"
	keyWaterHeading     = "water.heading"
	keyWaterFill        = "water.fill"
	keyWaterSingle      = "water.single"
	keyWaterNote        = "water.note"
	keyWaterFloored     = "water.floored"
	keyRemindersHeading = "reminders.heading"
	keyReminderLot      = "reminders.lot"
	keyReminderChlorine = "reminders.chlorine"
	keyErrorPatients    = "error.patients"
	keyErrorRates       = "error.rates"
	keyErrorRange       = "error.range"
)

// Supported lists the languages with a full catalog; the first one is the fallback.
var Supported = []language.Tag{language.Spanish, language.English}

var (
	matcher = language.NewMatcher(Supported)
	texts   = buildCatalog()
)

func buildCatalog() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.Spanish))

	set := func(tag language.Tag, entries map[string]string) {
		for key, msg := range entries {
			if err := b.SetString(tag, key, msg); err != nil {
				panic(err)
			}
		}
	}

	set(language.Spanish, map[string]string{
		keyPageTitle:        "Calculadora de Bicarbonato",
		keyFormLabel:        "Número de pacientes",
		keyFormSubmit:       "Calcular",
		keySafetyNote:       "El cálculo incluye 1 paciente adicional como margen de seguridad.",
		keyResultsTitle:     "Resultados para %d pacientes:",
		keyResultsBags:      "Usar: %d bolsas",
		keyResultsVolume:    "Volumen final objetivo: %s litros",
		keyWaterHeading:     "Instrucción inicial:",
		keyWaterFill:        "Llenar el mixer con agua de ósmosis hasta aprox. %s litros.",
		keyWaterSingle:      "Llenar el mixer con agua de ósmosis hasta %s-%s litros (una sola bolsa).",
		keyWaterNote:        "(Regla \"Volumen final - 10L\". Recuerde ajustar al volumen final exacto de %sL después de disolver el bicarbonato.)",
		keyWaterFloored:     "(Se aplicó el nivel mínimo de 1L.)",
		keyRemindersHeading: "Recordatorios importantes:",
		keyReminderLot:      "Verificar lote y vencimiento de las %d bolsas.",
		keyReminderChlorine: "¡Asegurar AUSENCIA de cloro residual en el mixer ANTES de añadir el polvo! (<0.1ppm)",
		keyErrorPatients:    "Por favor, ingrese un número válido de pacientes (mayor que cero).",
		keyErrorRates:       "Los litros por paciente y por bolsa deben ser mayores que cero (máximo 1000000, hasta 9 decimales).",
		keyErrorRange:       "El resultado excede el rango admitido. Revise el número de pacientes y los litros.",
	})

	set(language.English, map[string]string{
		keyPageTitle:        "Bicarbonate Calculator",
		keyFormLabel:        "Number of patients",
		keyFormSubmit:       "Calculate",
		keySafetyNote:       "The calculation includes 1 extra patient as a safety margin.",
		keyResultsTitle:     "Results for %d patients:",
		keyResultsBags:      "Use: %d bags",
		keyResultsVolume:    "Target final volume: %s liters",
		keyWaterHeading:     "Initial instruction:",
		keyWaterFill:        "Fill the mixer with osmosis water up to approx. %s liters.",
		keyWaterSingle:      "Fill the mixer with osmosis water up to %s-%s liters (single bag).",
		keyWaterNote:        "(\"Final volume - 10L\" rule. Remember to top up to the exact final volume of %sL after dissolving the bicarbonate.)",
		keyWaterFloored:     "(The 1L minimum level was applied.)",
		keyRemindersHeading: "Important reminders:",
		keyReminderLot:      "Check lot and expiry of the %d bags.",
		keyReminderChlorine: "Make sure there is NO residual chlorine in the mixer BEFORE adding the powder! (<0.1ppm)",
		keyErrorPatients:    "Please enter a valid number of patients (at least 1).",
		keyErrorRates:       "Liters per patient and liters per bag must be greater than zero (at most 1000000, up to 9 decimal places).",
		keyErrorRange:       "The result is out of the supported range. Check the patient count and the liters.",
	})

	return b
}

// Match picks a supported language from an explicit lang value first, then from an
// Accept-Language header. Empty or unsupported input yields fallback.
func Match(fallback language.Tag, lang, acceptLanguage string) language.Tag {
	var wanted []language.Tag
	if lang != "" {
		if tag, err := language.Parse(lang); err == nil {
			wanted = append(wanted, tag)
		}
	}
	if acceptLanguage != "" {
		if tags, _, err := language.ParseAcceptLanguage(acceptLanguage); err == nil {
			wanted = append(wanted, tags...)
		}
	}
	if len(wanted) == 0 {
		return fallback
	}

	_, idx, confidence := matcher.Match(wanted...)
	if confidence == language.No {
		return fallback
	}
	return Supported[idx]
}

// Parse resolves a configured language code to a supported tag, defaulting to the
// first supported language.
func Parse(code string) language.Tag {
	return Match(Supported[0], code, "")
}

func newPrinter(tag language.Tag) *message.Printer {
	return message.NewPrinter(tag, message.Catalog(texts))
}
