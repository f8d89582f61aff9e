package category

type Category struct {
	Name          string        `json:"name"`
	ProductCount  int           `json:"productCount"`
	Subcategories []Subcategory `json:"subcategories"`
}

type Subcategory struct {
	Name         string `json:"name"`
	ProductCount int    `json:"productCount"`
}

type Page struct {
	Categories      []Category `json:"categories"`
	TotalCategories int        `json:"totalCategories"`
	TotalPages      int        `json:"totalPages"`
	CurrentPage     int        `json:"currentPage"`
}
