package devserver

func seedVariants() []variant {
	return []variant{
		{id: 101, groupID: 1, name: "Air Zoom Drift", brand: "Nike", image: "/img/air-zoom-drift.png", price: 129.99, color: "black", size: 42, stock: 10},
		{id: 102, groupID: 1, name: "Air Zoom Drift", brand: "Nike", image: "/img/air-zoom-drift.png", price: 129.99, color: "white", size: 43, stock: 4},
		{id: 201, groupID: 2, name: "Gel Horizon", brand: "Asics", image: "/img/gel-horizon.png", price: 99.50, color: "blue", size: 41, stock: 6},
		{id: 202, groupID: 2, name: "Gel Horizon", brand: "Asics", image: "/img/gel-horizon.png", price: 99.50, color: "grey", size: 44, stock: 2},
		{id: 301, groupID: 3, name: "Club Classic", brand: "Reebok", image: "/img/club-classic.png", price: 74.00, color: "white", size: 42, stock: 15},
	}
}
