package receipt

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const (
	receiptBucketName    = "receipts"
	userBucketName       = "users"
	departmentBucketName = "departments"
)

// DB defines the interface for database operations
type DB interface {
	// SaveReceipt inserts or replaces a receipt
	SaveReceipt(receipt *Receipt) error

	// GetReceipt retrieves a receipt by ID
	GetReceipt(id string) (*Receipt, error)

	// ListReceipts returns all receipts
	ListReceipts() ([]*Receipt, error)

	// DeleteReceipt removes a receipt from the database
	DeleteReceipt(id string) error

	// NextSequence returns the next receipt insertion sequence number
	NextSequence() (uint64, error)

	SaveUser(user *User) error
	GetUser(id string) (*User, error)
	ListUsers() ([]*User, error)
	DeleteUser(id string) error

	SaveDepartment(department *Department) error
	GetDepartment(id string) (*Department, error)
	ListDepartments() ([]*Department, error)
	DeleteDepartment(id string) error

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	// Create buckets if they don't exist
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{receiptBucketName, userBucketName, departmentBucketName} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

func (b *BoltDB) put(bucketName, key string, value any) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("marshaling %s: %w", bucketName, err)
		}
		return tx.Bucket([]byte(bucketName)).Put([]byte(key), data)
	})
}

// get decodes the value stored under key; kind names the entity in not-found errors
func (b *BoltDB) get(bucketName, kind, key string, into any) error {
	return b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucketName)).Get([]byte(key))
		if data == nil {
			return fmt.Errorf("%s %s: %w", kind, key, ErrNotFound)
		}
		return json.Unmarshal(data, into)
	})
}

func (b *BoltDB) remove(bucketName, key string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Delete([]byte(key))
	})
}

// SaveReceipt saves a receipt to the database
func (b *BoltDB) SaveReceipt(receipt *Receipt) error {
	return b.put(receiptBucketName, receipt.ID, receipt)
}

// GetReceipt retrieves a receipt by ID
func (b *BoltDB) GetReceipt(id string) (*Receipt, error) {
	var receipt Receipt
	if err := b.get(receiptBucketName, "receipt", id, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// ListReceipts returns all receipts in key order
func (b *BoltDB) ListReceipts() ([]*Receipt, error) {
	receipts := make([]*Receipt, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(receiptBucketName))
		return bucket.ForEach(func(k, v []byte) error {
			var receipt Receipt
			if err := json.Unmarshal(v, &receipt); err != nil {
				return fmt.Errorf("unmarshaling receipt: %w", err)
			}
			receipts = append(receipts, &receipt)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return receipts, nil
}

// DeleteReceipt removes a receipt from the database
func (b *BoltDB) DeleteReceipt(id string) error {
	return b.remove(receiptBucketName, id)
}

// NextSequence returns the receipts bucket's next sequence number
func (b *BoltDB) NextSequence() (uint64, error) {
	var seq uint64
	err := b.db.Update(func(tx *bbolt.Tx) error {
		var err error
		seq, err = tx.Bucket([]byte(receiptBucketName)).NextSequence()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("allocating sequence: %w", err)
	}
	return seq, nil
}

// SaveUser saves a user to the database
func (b *BoltDB) SaveUser(user *User) error {
	return b.put(userBucketName, user.ID, user)
}

// GetUser retrieves a user by ID
func (b *BoltDB) GetUser(id string) (*User, error) {
	var user User
	if err := b.get(userBucketName, "user", id, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListUsers returns all users
func (b *BoltDB) ListUsers() ([]*User, error) {
	users := make([]*User, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(userBucketName)).ForEach(func(k, v []byte) error {
			var user User
			if err := json.Unmarshal(v, &user); err != nil {
				return fmt.Errorf("unmarshaling user: %w", err)
			}
			users = append(users, &user)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

// DeleteUser removes a user from the database
func (b *BoltDB) DeleteUser(id string) error {
	return b.remove(userBucketName, id)
}

// SaveDepartment saves a department to the database
func (b *BoltDB) SaveDepartment(department *Department) error {
	return b.put(departmentBucketName, department.ID, department)
}

// GetDepartment retrieves a department by ID
func (b *BoltDB) GetDepartment(id string) (*Department, error) {
	var department Department
	if err := b.get(departmentBucketName, "department", id, &department); err != nil {
		return nil, err
	}
	return &department, nil
}

// ListDepartments returns all departments
func (b *BoltDB) ListDepartments() ([]*Department, error) {
	departments := make([]*Department, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(departmentBucketName)).ForEach(func(k, v []byte) error {
			var department Department
			if err := json.Unmarshal(v, &department); err != nil {
				return fmt.Errorf("unmarshaling department: %w", err)
			}
			departments = append(departments, &department)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return departments, nil
}

// DeleteDepartment removes a department from the database
func (b *BoltDB) DeleteDepartment(id string) error {
	return b.remove(departmentBucketName, id)
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
