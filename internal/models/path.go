package models

import "fmt"

// DefaultListID is the list every user gets when none is configured.
const DefaultListID = "main"

// CollectionPath addresses the item collection of one user's list.
type CollectionPath struct {
	UserID string
	ListID string
}

// String renders the path as users/{uid}/shoppingLists/{list}/items.
func (p CollectionPath) String() string {
	return fmt.Sprintf("users/%s/shoppingLists/%s/items", p.UserID, p.ListID)
}

// Doc returns the path of a single item document in the collection.
func (p CollectionPath) Doc(itemID string) DocPath {
	return DocPath{Collection: p, ItemID: itemID}
}

// DocPath addresses one item document.
type DocPath struct {
	Collection CollectionPath
	ItemID     string
}

func (p DocPath) String() string {
	return p.Collection.String() + "/" + p.ItemID
}
