/*
Package capability is the plugin-side client for host capabilities.

Every request carries a fresh requestId and is matched to its `<type>-response`
by an rpc.Bus. OAuth authorization is matched by state on a separate bus, and
AI answers arrive as ai-stream-* messages on an rpc.Streams registry.

# APIs

  - Clipboard: copy, paste, read, readText, clear.
  - System: applications, frontmost application, show in finder, trash.
  - Environment: selected text, selected finder items, open.
  - PKCEClient: OAuth authorization code flow with PKCE and token storage.
  - BrowserExtension: tabs and tab content.
  - Ask: streamed AI answers.
  - Toast and ShowHUD: fire-and-forget notifications.

Deliver feeds host instructions in and never blocks.
*/
package capability
