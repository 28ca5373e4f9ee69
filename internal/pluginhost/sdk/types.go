package sdk

import (
	"github.com/nymea-go/thingd/pkg/ids"
	"github.com/nymea-go/thingd/pkg/values"
)

// DiscoveryResult describes one candidate Thing a plugin's Discover call
// found, not yet added to the Thing Registry.
type DiscoveryResult struct {
	ThingClassID ids.ThingClassID
	Name         string
	Params       map[string]values.Value
	// Description is a human-readable hint shown to the user choosing
	// among discovery results (e.g. a MAC address or serial number).
	Description string
}

// PairingInfo is returned by StartPairing to tell the caller how to
// complete an interactive setup (display a PIN, wait for a button press,
// open an OAuth URL).
type PairingInfo struct {
	DisplayMessage string
	// OAuthURL is set only for SetupMethodOAuth pairing: the user must
	// be redirected here to authorize the plugin's cloud account link.
	OAuthURL string
}

// BrowseResult is one level of a plugin's hierarchical content browser.
type BrowseResult struct {
	Items []BrowserItem
}

// BrowserItem is one entry in a Browser's listing: a folder-like
// container (Browsable) and/or something a BrowserItemActionType can act
// on (ActionTypes non-empty).
type BrowserItem struct {
	ID          string
	DisplayName string
	Description string
	Browsable   bool
	ActionTypes []ids.ActionTypeID
}
