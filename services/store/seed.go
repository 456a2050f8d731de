package main

import (
	"github.com/matheusmosca/supplements-store/services/store/catalog"
	"github.com/matheusmosca/supplements-store/services/store/memstore"
)

// demoProducts é o catálogo carregado no modo memory (preços em CLP)
var demoProducts = []catalog.Product{
	{Ref: catalog.ProductRef{Category: catalog.CategoryProtein, ID: 1}, Name: "Whey Protein 2lb", Price: 32990, Stock: 40, ImageRef: "protein/whey-2lb.png"},
	{Ref: catalog.ProductRef{Category: catalog.CategoryProtein, ID: 2}, Name: "Isolate Protein 5lb", Price: 64990, Stock: 15, ImageRef: "protein/isolate-5lb.png"},
	{Ref: catalog.ProductRef{Category: catalog.CategorySnack, ID: 1}, Name: "Protein Bar", Price: 1990, Stock: 200, ImageRef: "snack/bar.png"},
	{Ref: catalog.ProductRef{Category: catalog.CategoryCreatine, ID: 1}, Name: "Creatine Monohydrate 300g", Price: 24990, Stock: 30, ImageRef: "creatine/mono-300g.png"},
	{Ref: catalog.ProductRef{Category: catalog.CategoryAminoAcid, ID: 1}, Name: "BCAA 2:1:1", Price: 18990, Stock: 25, ImageRef: "amino_acid/bcaa.png"},
	{Ref: catalog.ProductRef{Category: catalog.CategoryVitamin, ID: 1}, Name: "Multivitamin 60 caps", Price: 9990, Stock: 50, ImageRef: "vitamin/multi-60.png"},
}

func seedCatalog(store *memstore.Store) {
	for _, p := range demoProducts {
		store.PutProduct(p)
	}
}
