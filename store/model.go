package store

// Model defines the shape of a document stored in a collection. Custom types
// must implement the interface by embedding the Base type.
type Model interface {
	// GetBase returns the models base.
	GetBase() *Base

	// ID returns the document id.
	ID() ID
}

// Base is the base for every stored model. All collections use soft deletes,
// therefore the delete flag is part of the base itself.
type Base struct {
	DocID   ID   `json:"-" bson:"_id,omitempty"`
	Deleted bool `json:"-" bson:"deleted"`
}

// B is a short-hand to construct a base with the provided id or a generated
// id if none specified.
func B(id ...ID) Base {
	// check list
	if len(id) > 1 {
		panic("store: B accepts only one id")
	}

	// use provided id if available
	if len(id) > 0 {
		return Base{
			DocID: id[0],
		}
	}

	return Base{
		DocID: New(),
	}
}

// ID implements the Model interface.
func (b *Base) ID() ID {
	return b.DocID
}

// GetBase implements the Model interface.
func (b *Base) GetBase() *Base {
	return b
}
