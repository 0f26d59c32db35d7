package browser

import _ "embed"

// Page-side halves of the browser adapter. Each script is a JS function
// expression evaluated with rod.EvalOptions.

//go:embed scripts/snapshot.js
var snapshotJS string

//go:embed scripts/apply.js
var applyJS string

//go:embed scripts/banner.js
var bannerJS string

//go:embed scripts/triggers.js
var triggersJS string

//go:embed scripts/poll.js
var pollJS string
