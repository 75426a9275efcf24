package repo

import (
	"strings"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/akarpachev/repokit/pager"
)

func newGORMPostgresMock() (*gorm.DB, sqlmock.Sqlmock, error) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		return nil, nil, err
	}

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn: mockDB,
	}), &gorm.Config{})
	if err != nil {
		return nil, nil, err
	}

	return db.Debug(), mock, nil
}

type user struct {
	ID   string
	Name string
	Seq  int64
}

func (user) TableName() string { return "users" }

func userRows(rows ...user) *sqlmock.Rows {
	ret := sqlmock.NewRows([]string{"id", "name", "seq"})
	for _, row := range rows {
		ret.AddRow(row.ID, row.Name, row.Seq)
	}

	return ret
}

type userContract struct{}

func (userContract) CursorFields() pager.Orderings {
	return pager.Orderings{
		{Column: "seq", Order: pager.OrderASC},
		{Column: "id", Order: pager.OrderASC},
	}
}

func (userContract) CursorValues(row user) []any {
	return []any{row.Seq, row.ID}
}

type filteredUserContract struct{ userContract }

func (filteredUserContract) Filters() []Filter {
	return []Filter{
		{
			Name: "name",
			Apply: func(db *gorm.DB, value any) *gorm.DB {
				return db.Where("name = ?", value)
			},
		},
	}
}

type pet struct {
	ID     string
	UserID string
	Name   string
}

func (pet) TableName() string { return "pets" }

type userWithPets struct {
	ID   string
	Name string
	Seq  int64
	Pets []pet `gorm:"foreignKey:UserID"`
}

func (userWithPets) TableName() string { return "users" }

func petRows(rows ...pet) *sqlmock.Rows {
	ret := sqlmock.NewRows([]string{"id", "user_id", "name"})
	for _, row := range rows {
		ret.AddRow(row.ID, row.UserID, row.Name)
	}

	return ret
}

type petOwnerContract struct{}

func (petOwnerContract) CursorFields() pager.Orderings {
	return pager.Orderings{
		{Column: "seq", Order: pager.OrderASC},
		{Column: "id", Order: pager.OrderASC},
	}
}

func (petOwnerContract) CursorValues(row userWithPets) []any {
	return []any{row.Seq, row.ID}
}

type scopedPetOwnerContract struct{ petOwnerContract }

func (scopedPetOwnerContract) Preloads() map[string]Resolver[userWithPets] {
	return map[string]Resolver[userWithPets]{
		"Pets": ResolverQuery[userWithPets]{
			Scope: func(db *gorm.DB) *gorm.DB {
				return db.Order("name ASC")
			},
		},
	}
}

type preloadedUserContract struct{ userContract }

func (preloadedUserContract) Preloads() map[string]Resolver[user] {
	return map[string]Resolver[user]{
		"display_name": ResolverFunc[user](func(rows []user) ([]user, error) {
			for i := range rows {
				rows[i].Name = strings.ToUpper(rows[i].Name)
			}

			return rows, nil
		}),
	}
}
