package ui

import "strings"

// Synthetic kinds. They never reach the wire as node kinds.
const (
	KindText     = "#text"
	KindFragment = "#fragment"
)

// The closed node vocabulary.
const (
	KindList                 = "List"
	KindListSection          = "List.Section"
	KindListItem             = "List.Item"
	KindListEmptyView        = "List.EmptyView"
	KindListDropdown         = "List.Dropdown"
	KindListDropdownSection  = "List.Dropdown.Section"
	KindListDropdownItem     = "List.Dropdown.Item"
	KindListItemDetail       = "List.Item.Detail"
	KindListItemDetailMeta   = "List.Item.Detail.Metadata"
	KindListItemDetailLabel  = "List.Item.Detail.Metadata.Label"
	KindListItemDetailLink   = "List.Item.Detail.Metadata.Link"
	KindListItemDetailTags   = "List.Item.Detail.Metadata.TagList"
	KindListItemDetailTag    = "List.Item.Detail.Metadata.TagList.Item"
	KindListItemDetailSep    = "List.Item.Detail.Metadata.Separator"
	KindGrid                 = "Grid"
	KindGridSection          = "Grid.Section"
	KindGridItem             = "Grid.Item"
	KindGridEmptyView        = "Grid.EmptyView"
	KindGridDropdown         = "Grid.Dropdown"
	KindGridDropdownSection  = "Grid.Dropdown.Section"
	KindGridDropdownItem     = "Grid.Dropdown.Item"
	KindDetail               = "Detail"
	KindDetailMetadata       = "Detail.Metadata"
	KindDetailLabel          = "Detail.Metadata.Label"
	KindDetailLink           = "Detail.Metadata.Link"
	KindDetailTagList        = "Detail.Metadata.TagList"
	KindDetailTag            = "Detail.Metadata.TagList.Item"
	KindDetailSeparator      = "Detail.Metadata.Separator"
	KindForm                 = "Form"
	KindFormTextField        = "Form.TextField"
	KindFormPasswordField    = "Form.PasswordField"
	KindFormTextArea         = "Form.TextArea"
	KindFormCheckbox         = "Form.Checkbox"
	KindFormDropdown         = "Form.Dropdown"
	KindFormDropdownSection  = "Form.Dropdown.Section"
	KindFormDropdownItem     = "Form.Dropdown.Item"
	KindFormDescription      = "Form.Description"
	KindFormSeparator        = "Form.Separator"
	KindActionPanel          = "ActionPanel"
	KindActionPanelSection   = "ActionPanel.Section"
	KindActionPanelSubmenu   = "ActionPanel.Submenu"
	KindAction               = "Action"
	KindActionCopy           = "Action.CopyToClipboard"
	KindActionPaste          = "Action.Paste"
	KindActionOpenInBrowser  = "Action.OpenInBrowser"
	KindActionOpen           = "Action.Open"
	KindActionPush           = "Action.Push"
	KindActionSubmitForm     = "Action.SubmitForm"
	KindActionShowInFinder   = "Action.ShowInFinder"
	KindMenuBarExtra         = "MenuBarExtra"
	KindMenuBarExtraSection  = "MenuBarExtra.Section"
	KindMenuBarExtraItem     = "MenuBarExtra.Item"
	KindMenuBarExtraSubmenu  = "MenuBarExtra.Submenu"
	KindMenuBarExtraSeparate = "MenuBarExtra.Separator"
)

var vocabulary = map[string]struct{}{}

func init() {
	for _, k := range []string{
		KindList, KindListSection, KindListItem, KindListEmptyView,
		KindListDropdown, KindListDropdownSection, KindListDropdownItem,
		KindListItemDetail, KindListItemDetailMeta, KindListItemDetailLabel,
		KindListItemDetailLink, KindListItemDetailTags, KindListItemDetailTag, KindListItemDetailSep,
		KindGrid, KindGridSection, KindGridItem, KindGridEmptyView,
		KindGridDropdown, KindGridDropdownSection, KindGridDropdownItem,
		KindDetail, KindDetailMetadata, KindDetailLabel, KindDetailLink,
		KindDetailTagList, KindDetailTag, KindDetailSeparator,
		KindForm, KindFormTextField, KindFormPasswordField, KindFormTextArea, KindFormCheckbox,
		KindFormDropdown, KindFormDropdownSection, KindFormDropdownItem, KindFormDescription, KindFormSeparator,
		KindActionPanel, KindActionPanelSection, KindActionPanelSubmenu,
		KindAction, KindActionCopy, KindActionPaste, KindActionOpenInBrowser, KindActionOpen,
		KindActionPush, KindActionSubmitForm, KindActionShowInFinder,
		KindMenuBarExtra, KindMenuBarExtraSection, KindMenuBarExtraItem,
		KindMenuBarExtraSubmenu, KindMenuBarExtraSeparate,
	} {
		vocabulary[k] = struct{}{}
	}
}

// IsKnownKind reports whether kind belongs to the node vocabulary.
func IsKnownKind(kind string) bool {
	_, ok := vocabulary[kind]
	return ok
}

// IsAction reports whether kind is an invokable action (Action or Action.*).
func IsAction(kind string) bool {
	return kind == KindAction || strings.HasPrefix(kind, KindAction+".")
}

// IsItem reports whether kind is a selectable list or grid entry.
func IsItem(kind string) bool {
	return kind == KindListItem || kind == KindGridItem
}

// IsSection reports whether kind groups items.
func IsSection(kind string) bool {
	return kind == KindListSection || kind == KindGridSection
}
