// Package langmap converts Presentation 2.x label and value representations
// into Presentation 3 language maps.
//
// A language map maps a BCP-47 tag, or the "@none" key, to an ordered list of
// strings. Normalization is pure and total over the accepted input shapes; any
// other shape yields a *MalformedValueError that unwraps to
// services.ErrMalformedLanguageValue.
package langmap
