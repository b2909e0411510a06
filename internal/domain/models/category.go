package models

// Category представляет категорию каталога с вложенными подкатегориями
type Category struct {
	ID            int64          `json:"id"`
	Name          string         `json:"name"`
	SortOrder     int            `json:"order"`
	Subcategories []*Subcategory `json:"subcategories"`
}

// Subcategory представляет подкатегорию внутри категории
type Subcategory struct {
	ID         int64  `json:"id"`
	CategoryID int64  `json:"category_id"`
	Name       string `json:"name"`
	SortOrder  int    `json:"order"`
}
