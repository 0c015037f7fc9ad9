// Package dev provides the development-only parts of the server: unbundled
// asset serving and browser live reload.
//
// This package implements:
//   - File watching on the front-end output directories (fsnotify)
//   - WebSocket-based browser refresh
//   - Serving unbundled assets such as /main.js without caching
//
// # Usage
//
//	lr := dev.NewLiveReload(dev.LiveReloadConfig{
//	    Watch: []string{"web/dist-dev"},
//	}, guard, logger)
//	if err := lr.Start(ctx); err != nil {
//	    return err
//	}
//	defer lr.Close()
//
//	r.Get(dev.ReloadPath, lr.Server().HandleWebSocket)
//	r.Get(dev.ClientScriptPath, dev.ClientScriptHandler)
//
// # Live Reload Protocol
//
// The browser connects to /__livereload via WebSocket.
// Messages are JSON-encoded:
//
//	{"type": "reload"}             // Triggers full page reload
//	{"type": "css", "file": "..."} // Triggers CSS-only reload
package dev
