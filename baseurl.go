package courier

import (
	"context"
	"fmt"
	"net"
	"net/url"
)

// Site is a host the application is reachable on, in the shape of a domain
// with an optional port ("example.org", "localhost:8000"). When no base URL
// is configured, the default site decides how absolute links look.
type Site struct {
	ID      string
	Domain  string
	Default bool
}

// ResolveBaseURL picks the base URL for absolute links. A configured URL
// wins verbatim. Otherwise the site registry decides: the site with the
// given ID, or the default site when the ID is empty. Loopback hosts get
// http, everything else https. With nothing to go on, this fails with
// ErrTemplate.
func ResolveBaseURL(configured string, sites []Site, siteID string) (string, error) {
	if configured != "" {
		return configured, nil
	}

	site, ok := pickSite(sites, siteID)
	if !ok {
		return "", fmt.Errorf("%w: cannot determine the base URL, configure one or declare a site", ErrTemplate)
	}
	return siteURL(site.Domain), nil
}

func pickSite(sites []Site, id string) (Site, bool) {
	if id != "" {
		for _, site := range sites {
			if site.ID == id {
				return site, true
			}
		}
		return Site{}, false
	}
	for _, site := range sites {
		if site.Default {
			return site, true
		}
	}
	return Site{}, false
}

// siteURL guesses the scheme from the host. The port is only stripped to
// classify the host, it stays in the resulting URL.
func siteURL(domain string) string {
	host := domain
	if h, _, err := net.SplitHostPort(domain); err == nil {
		host = h
	}

	scheme := "https"
	if host == "localhost" {
		scheme = "http"
	} else if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		scheme = "http"
	}

	return scheme + "://" + domain
}

// Absolute joins ref onto base unless ref already is an absolute URL.
func Absolute(base, ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("%w: parse %q: %v", ErrTemplate, ref, err)
	}
	if u.IsAbs() {
		return ref, nil
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("%w: parse base URL %q: %v", ErrTemplate, base, err)
	}
	return b.ResolveReference(u).String(), nil
}

// baseURLFunc resolves the base URL for the message being rendered. It sits
// on the context so resolution only happens, and only fails, when a message
// actually needs an absolute link.
type baseURLFunc func(ctx context.Context) (string, error)

type baseURLKey struct{}

func withBaseURL(ctx context.Context, resolve baseURLFunc) context.Context {
	return context.WithValue(ctx, baseURLKey{}, resolve)
}

// currentBaseURL resolves the base URL carried by a rendering context.
func currentBaseURL(ctx context.Context) (string, error) {
	resolve, ok := ctx.Value(baseURLKey{}).(baseURLFunc)
	if !ok {
		return "", fmt.Errorf("%w: no base URL outside of a message rendering", ErrTemplate)
	}
	return resolve(ctx)
}

// MakeAbsolute turns a relative path into an absolute URL using the base
// URL of the message being rendered. It only works on a context handed to a
// type accessor or template.
func MakeAbsolute(ctx context.Context, ref string) (string, error) {
	base, err := currentBaseURL(ctx)
	if err != nil {
		return "", err
	}
	return Absolute(base, ref)
}
