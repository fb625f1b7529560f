// package models defines the data model for the playlist reconciliation pipeline
package models

// Model defines the base interface for persisted records.
type Model interface {
	GetID() string   // GetID returns the unique identifier for this record
	Validate() error // Validate checks if the record's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
// Implementations handle database interactions for specific model types.
type Repository[T Model] interface {
	Create(model T) error                      // Create inserts a new record into the database
	Get(id string) (T, error)                  // Get retrieves a record by its ID
	Update(model T) error                      // Update modifies an existing record in the database
	Delete(id string) error                    // Delete removes a record from the database by its ID
	List(criteria map[string]any) ([]T, error) // List retrieves all records matching the given criteria
}
