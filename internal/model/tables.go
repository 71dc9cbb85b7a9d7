package model

// Tables lists every model handled by database migrations, parents first
var Tables = []interface{}{
	&Customer{},
	&Product{},
	&Vehicle{},
	&Order{},
	&OrderItem{},
}
