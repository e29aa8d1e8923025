// Package nif holds the types shared by every layer of the NIF toolkit:
// format versions and the typed format error.
//
// Every decode and encode failure is a *Error carrying a Kind, so callers
// can branch on the kind with errors.Is against the Err* sentinels:
//
//	if errors.Is(err, nif.ErrUnsupportedVersion) {
//	    // skip the file
//	}
package nif
