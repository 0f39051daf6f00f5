package order

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var statusLabels = map[language.Tag]map[Status]string{
	language.French: {
		StatusPending:    "En attente",
		StatusConfirmed:  "Confirmée",
		StatusProcessing: "En préparation",
		StatusReady:      "Prête",
		StatusDelivering: "En livraison",
		StatusCompleted:  "Terminée",
		StatusCancelled:  "Annulée",
	},
	language.English: {
		StatusPending:    "Pending",
		StatusConfirmed:  "Confirmed",
		StatusProcessing: "Processing",
		StatusReady:      "Ready",
		StatusDelivering: "Out for delivery",
		StatusCompleted:  "Completed",
		StatusCancelled:  "Cancelled",
	},
}

var labelMatcher = language.NewMatcher([]language.Tag{language.French, language.English})

func init() {
	for tag, labels := range statusLabels {
		for s, label := range labels {
			if err := message.SetString(tag, string(s), label); err != nil {
				panic(err)
			}
		}
	}
}

// LabelTag resolves a locale string such as "fr" or "en-GB" to a supported tag.
// Unknown or empty locales fall back to French.
func LabelTag(locale string) language.Tag {
	tag, err := language.Parse(locale)
	if err != nil {
		return language.French
	}
	_, idx, _ := labelMatcher.Match(tag)
	return []language.Tag{language.French, language.English}[idx]
}

// Label returns the human-readable name of s in tag's language.
func (s Status) Label(tag language.Tag) string {
	return message.NewPrinter(tag).Sprintf(string(s))
}

// StatusOption is a target status offered to the back-office.
type StatusOption struct {
	Status Status
	Label  string
}

// AvailableStatuses lists the statuses o can move to right now: legal successors
// that no guard rejects.
func (o *Order) AvailableStatuses(guards []Guard, tag language.Tag) []StatusOption {
	var out []StatusOption
	for _, s := range o.Status.Successors() {
		if o.CheckTransition(s, guards) != nil {
			continue
		}
		out = append(out, StatusOption{Status: s, Label: s.Label(tag)})
	}
	return out
}
