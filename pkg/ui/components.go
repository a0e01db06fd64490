package ui

// List describes a searchable list view.
func List(props Props, children ...Element) Element {
	return New(KindList, props, children...)
}

// ListSection groups list items under a title.
func ListSection(title string, children ...Element) Element {
	return New(KindListSection, Props{"title": title}, children...)
}

// ListItem describes one selectable row. Put an ActionPanel under the "actions" prop.
func ListItem(props Props) Element {
	return New(KindListItem, props)
}

// Grid describes a grid view.
func Grid(props Props, children ...Element) Element {
	return New(KindGrid, props, children...)
}

// GridItem describes one grid cell.
func GridItem(props Props) Element {
	return New(KindGridItem, props)
}

// Detail describes a markdown detail view.
func Detail(markdown string, props Props) Element {
	p := Props{"markdown": markdown}
	for k, v := range props {
		p[k] = v
	}
	return New(KindDetail, p)
}

// Form describes an input form.
func Form(props Props, children ...Element) Element {
	return New(KindForm, props, children...)
}

func ActionPanel(children ...Element) Element {
	return New(KindActionPanel, nil, children...)
}

func ActionPanelSection(title string, children ...Element) Element {
	return New(KindActionPanelSection, Props{"title": title}, children...)
}

// ActionPanelSubmenu nests actions one level down. It counts as a single action.
func ActionPanelSubmenu(title string, children ...Element) Element {
	return New(KindActionPanelSubmenu, Props{"title": title}, children...)
}

// Action runs onAction when the host triggers it.
func Action(title string, onAction func()) Element {
	return New(KindAction, Props{"title": title, "onAction": onAction})
}

// CopyToClipboard asks the host to copy content when triggered.
func CopyToClipboard(title, content string) Element {
	return New(KindActionCopy, Props{"title": title, "content": content})
}

// OpenInBrowser asks the host to open url when triggered.
func OpenInBrowser(title, url string) Element {
	return New(KindActionOpenInBrowser, Props{"title": title, "url": url})
}

// Paste asks the host to paste content into the frontmost application.
func Paste(title, content string) Element {
	return New(KindActionPaste, Props{"title": title, "content": content})
}

// Push navigates to target when triggered.
func Push(title string, target Component) Element {
	return New(KindActionPush, Props{"title": title, "target": target})
}
