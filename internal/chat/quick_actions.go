package chat

import "strings"

// QuickAction is a canned question offered by the chat surfaces.
type QuickAction struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Question string `json:"question"`
}

// QuickActions are the shortcuts shown in the terminal chat and served by
// the HTTP API, in display order.
var QuickActions = []QuickAction{
	{Key: "f1", Label: "Admissions", Question: "What are the admission requirements?"},
	{Key: "f2", Label: "Fees", Question: "How much are the tuition fees?"},
	{Key: "f3", Label: "Programs", Question: "What programs are available at ATS?"},
	{Key: "f4", Label: "Locations", Question: "Where are the ATS campuses located?"},
}

// QuickActionFor returns the action bound to key, matched case-insensitively.
func QuickActionFor(key string) (QuickAction, bool) {
	for _, a := range QuickActions {
		if strings.EqualFold(a.Key, key) {
			return a, true
		}
	}
	return QuickAction{}, false
}
