package discord

import (
	"fmt"

	"github.com/ifi-progsys/sam/pkg/models"
)

// timeLayout is the human-readable start time shown in announcements,
// e.g. "24.10.2025 | kl. 18:00".
const timeLayout = "02.01.2006 | kl. 15:04"

// BuildAnnouncement renders the channel message for an event. The same
// text is used for the initial send and for in-place edits, so an edit
// fully replaces the announcement body.
func BuildAnnouncement(ev models.Event) string {
	return fmt.Sprintf(
		"## 📅 %s\n%s\n__**Når?**__ %s\n__**Hvor?**__ %s\n__**Påmelding:**__ %s\n",
		ev.Title,
		ev.Description,
		ev.StartAt.UTC().Format(timeLayout),
		ev.Place,
		ev.Link,
	)
}
