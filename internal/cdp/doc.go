// Package cdp wraps the remote-debugging collaborator: navigation, raw
// keyboard input, and expression evaluation against the browser process
// over the Chrome DevTools Protocol.
//
// The core never perceives through CDP (perception is structured
// candidates, not pixels or raw DOM); this package only carries the
// side-channel operations the controller protocol exposes.
package cdp
