package main

import (
	"fmt"

	"github.com/sanity-io/litter"

	"github.com/kevinxiao27/docweave/pkg/actor"
	"github.com/kevinxiao27/docweave/pkg/document"
)

func main() {
	litter.Config.HidePrivateFields = false

	docA := document.New("demo", actor.New())
	docB := document.New("demo", actor.New())

	must(docA.Update("a writes title", func(root *document.ObjectProxy) error {
		return root.SetString("title", "hi")
	}))
	must(docB.Update("b writes greeting", func(root *document.ObjectProxy) error {
		return root.SetString("greeting", "yoooo")
	}))

	must(docB.ApplyChangePack(docA.CreateChangePack()))
	must(docA.ApplyChangePack(docB.CreateChangePack()))

	contentA := docA.GetRoot().MarshalCanonicalJSON()
	contentB := docB.GetRoot().MarshalCanonicalJSON()

	fmt.Printf("docA: %s\n", contentA)
	fmt.Printf("docB: %s\n", contentB)

	if string(contentA) == string(contentB) {
		fmt.Println("converged")
	} else {
		fmt.Println("diverged")
		litter.Dump(contentA)
		litter.Dump(contentB)
	}
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
