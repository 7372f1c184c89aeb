package proptable

import "strings"

type serviceFamily int

const (
	familyNone serviceFamily = iota
	familyImage1
	familyImage2
	familyImage3
	familySearch
	familyAuth
)

var serviceContexts = map[string]serviceFamily{
	"http://iiif.io/api/image/1/context.json":  familyImage1,
	"http://iiif.io/api/image/2/context.json":  familyImage2,
	"http://iiif.io/api/image/3/context.json":  familyImage3,
	"http://iiif.io/api/search/0/context.json": familySearch,
	"http://iiif.io/api/search/1/context.json": familySearch,
	"http://iiif.io/api/auth/0/context.json":   familyAuth,
	"http://iiif.io/api/auth/1/context.json":   familyAuth,
}

var profilePrefixes = []struct {
	prefix string
	family serviceFamily
}{
	{"http://library.stanford.edu/iiif/image-api/1.1/", familyImage1},
	{"http://iiif.io/api/image/1/", familyImage1},
	{"http://iiif.io/api/image/2/", familyImage2},
	{"http://iiif.io/api/image/3/", familyImage3},
	{"http://iiif.io/api/search/", familySearch},
	{"http://iiif.io/api/auth/", familyAuth},
}

var authTypes = map[string]string{
	"login":        "AuthCookieService1",
	"clickthrough": "AuthCookieService1",
	"kiosk":        "AuthCookieService1",
	"external":     "AuthCookieService1",
	"token":        "AuthTokenService1",
	"logout":       "AuthLogoutService1",
}

var serviceTypes = map[string]bool{
	"ImageService1":        true,
	"ImageService2":        true,
	"ImageService3":        true,
	"SearchService1":       true,
	"AutoCompleteService1": true,
	"AuthCookieService1":   true,
	"AuthTokenService1":    true,
	"AuthLogoutService1":   true,
}

// ServiceType resolves the 3.x type of a service from its 2.x @context,
// profile and @type. The boolean is false when the service is not in the
// registry; such services keep their own type.
func ServiceType(ctx, profile, typ string) (string, bool) {
	if serviceTypes[typ] {
		return typ, true
	}
	family := serviceContexts[strings.TrimSpace(ctx)]
	if family == familyNone {
		for _, p := range profilePrefixes {
			if strings.HasPrefix(profile, p.prefix) {
				family = p.family
				break
			}
		}
	}
	switch family {
	case familyImage1:
		return "ImageService1", true
	case familyImage2:
		return "ImageService2", true
	case familyImage3:
		return "ImageService3", true
	case familySearch:
		if lastSegment(profile) == "autocomplete" {
			return "AutoCompleteService1", true
		}
		return "SearchService1", true
	case familyAuth:
		name, ok := authTypes[lastSegment(profile)]
		return name, ok
	}
	return "", false
}

// IsServiceType reports whether name is a registered 3.x service type.
func IsServiceType(name string) bool {
	return serviceTypes[name]
}

func lastSegment(profile string) string {
	profile = strings.TrimSuffix(strings.TrimSpace(profile), "/")
	if idx := strings.LastIndexAny(profile, "/#"); idx >= 0 {
		profile = profile[idx+1:]
	}
	return strings.TrimSuffix(profile, ".json")
}
