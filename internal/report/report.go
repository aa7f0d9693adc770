// Package report turns a preparation plan into localized, human-readable text.
package report

import (
	"errors"

	"golang.org/x/text/language"

	"github.com/eugenenazirov/bicarb-prep/internal/calculator"
	"github.com/eugenenazirov/bicarb-prep/internal/preparation"
)

// Report is the rendered text for one plan. It carries no markup.
type Report struct {
	Language     string   `json:"language"`
	Title        string   `json:"title"`
	Bags         string   `json:"bags"`
	FinalVolume  string   `json:"finalVolume"`
	WaterHeading string   `json:"waterHeading"`
	Instruction  string   `json:"instruction"`
	Notes        []string `json:"notes"`
	Reminders    []string `json:"reminders"`
}

// Labels holds the static page strings for one language.
type Labels struct {
	Language         string
	Title            string
	FormLabel        string
	Submit           string
	SafetyNote       string
	RemindersHeading string
}

// Build renders plan in the language identified by tag.
func Build(plan preparation.Plan, tag language.Tag) Report {
	p := newPrinter(tag)

	rep := Report{
		Language:     tag.String(),
		Title:        p.Sprintf(keyResultsTitle, plan.RequestedPatients),
		Bags:         p.Sprintf(keyResultsBags, plan.Bags),
		FinalVolume:  p.Sprintf(keyResultsVolume, plan.FinalVolume.String()),
		WaterHeading: p.Sprintf(keyWaterHeading),
	}

	if plan.Water.SingleBag {
		rep.Instruction = p.Sprintf(keyWaterSingle, plan.Water.MinLiters.String(), plan.Water.MaxLiters.String())
	} else {
		rep.Instruction = p.Sprintf(keyWaterFill, plan.Water.Liters.String())
		rep.Notes = append(rep.Notes, p.Sprintf(keyWaterNote, plan.FinalVolume.String()))
		if plan.Water.Floored {
			rep.Notes = append(rep.Notes, p.Sprintf(keyWaterFloored))
		}
	}

	rep.Reminders = []string{
		p.Sprintf(keyReminderLot, plan.Bags),
		p.Sprintf(keyReminderChlorine),
	}
	return rep
}

// PageLabels returns the static form strings for tag.
func PageLabels(tag language.Tag) Labels {
	p := newPrinter(tag)
	return Labels{
		Language:         tag.String(),
		Title:            p.Sprintf(keyPageTitle),
		FormLabel:        p.Sprintf(keyFormLabel),
		Submit:           p.Sprintf(keyFormSubmit),
		SafetyNote:       p.Sprintf(keySafetyNote),
		RemindersHeading: p.Sprintf(keyRemindersHeading),
	}
}

// ErrorMessage maps a calculation error to the user-facing text. Unknown errors
// fall back to the invalid patient message.
func ErrorMessage(err error, tag language.Tag) string {
	p := newPrinter(tag)
	switch {
	case errors.Is(err, calculator.ErrInvalidRates):
		return p.Sprintf(keyErrorRates)
	case errors.Is(err, calculator.ErrResultOutOfRange):
		return p.Sprintf(keyErrorRange)
	}
	return p.Sprintf(keyErrorPatients)
}
