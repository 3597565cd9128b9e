package topic

import (
	"fmt"
	"strings"
)

// PrefixSystem is the root of the topics SkyRoute itself publishes on.
const PrefixSystem = "skyroute"

// Join builds a topic from levels.
//
// Example: Join("sensors", "kitchen", "temp") returns "sensors/kitchen/temp".
func Join(levels ...string) string {
	return strings.Join(levels, Separator)
}

// Topics provides builders for SkyRoute's own system topics.
// Using these helpers keeps topic naming consistent between publishers and
// the subscribers that watch them.
type Topics struct{}

// ClientStatus returns the retained online/offline status topic of a client.
//
// Example: skyroute/client/sensor-gw-01/status
func (Topics) ClientStatus(clientID string) string {
	return fmt.Sprintf("%s/client/%s/status", PrefixSystem, clientID)
}

// AllClientStatus returns a pattern matching every client's status topic.
//
// Pattern: skyroute/client/+/status
func (Topics) AllClientStatus() string {
	return fmt.Sprintf("%s/client/+/status", PrefixSystem)
}

// AllSystem returns a pattern matching every SkyRoute system topic.
//
// Pattern: skyroute/#
func (Topics) AllSystem() string {
	return PrefixSystem + Separator + MultiLevel
}
