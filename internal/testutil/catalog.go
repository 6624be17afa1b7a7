package testutil

import "github.com/leapstack-labs/taskforge/pkg/core"

// Parameter, option and dependency ids of the WallCatalog fixture.
const (
	Material  core.ParameterID = 1
	Thickness core.ParameterID = 2
	Mortar    core.ParameterID = 3
	Finish    core.ParameterID = 4

	Brick core.OptionID = 11
	Block core.OptionID = 12
	Stone core.OptionID = 13

	Thin   core.OptionID = 21 // 12cm
	Medium core.OptionID = 22 // 15cm
	Thick  core.OptionID = 23 // 20cm

	Cement   core.OptionID = 31
	Lime     core.OptionID = 32
	Adhesive core.OptionID = 33

	FairFaced core.OptionID = 41
	Plastered core.OptionID = 42

	DepBrickThickness  core.DependencyID = 100
	DepBlockThickness  core.DependencyID = 101
	DepStoneThickness  core.DependencyID = 102 // no allowed options configured
	DepMediumMortar    core.DependencyID = 103
	DepThinMortar      core.DependencyID = 104
	DepBlockMortar     core.DependencyID = 105
	WallTemplate       core.TemplateID   = 1
	WallTemplateCode                     = "MW"
	WallNameExpression                   = "{material} wall {thickness} {mortar} {finish}."
)

// WallCatalog returns a masonry wall catalog:
//
//	material (root) -> thickness: brick {12cm,15cm}, block {15cm,20cm}, stone {all}
//	thickness -> mortar: 15cm {cement,lime}, 12cm {cement}
//	material  -> mortar: block {adhesive}
//	finish (root, optional)
func WallCatalog() *core.Catalog {
	return &core.Catalog{
		Template: core.Template{
			ID:             WallTemplate,
			Code:           WallTemplateCode,
			Name:           "Masonry wall",
			NameExpression: WallNameExpression,
			Parameters: []core.TemplateParameter{
				{ParameterID: Material, Position: 1, Required: true},
				{ParameterID: Thickness, Position: 2, Required: true},
				{ParameterID: Mortar, Position: 3, Required: true},
				{ParameterID: Finish, Position: 4},
			},
		},
		Parameters: []core.Parameter{
			{ID: Material, Slug: "material", Label: "Material", Position: 1},
			{ID: Thickness, Slug: "thickness", Label: "Thickness", ExpressionTemplate: "{value} thick", Position: 2},
			{ID: Mortar, Slug: "mortar", Label: "Mortar", ExpressionTemplate: "with {value} mortar", Position: 3},
			{ID: Finish, Slug: "finish", Label: "Finish", ExpressionTemplate: "{value} finish", Position: 4},
		},
		Options: []core.Option{
			{ID: Brick, ParameterID: Material, Name: "brick", Label: "brick", Position: 1},
			{ID: Block, ParameterID: Material, Name: "block", Label: "concrete block", Position: 2},
			{ID: Stone, ParameterID: Material, Name: "stone", Label: "stone", Position: 3},
			{ID: Thin, ParameterID: Thickness, Name: "12cm", Label: "12cm", Position: 1},
			{ID: Medium, ParameterID: Thickness, Name: "15cm", Label: "15cm", Position: 2},
			{ID: Thick, ParameterID: Thickness, Name: "20cm", Label: "20cm", Position: 3},
			{ID: Cement, ParameterID: Mortar, Name: "cement", Label: "cement", Position: 1},
			{ID: Lime, ParameterID: Mortar, Name: "lime", Label: "lime", Position: 2},
			{ID: Adhesive, ParameterID: Mortar, Name: "adhesive", Label: "adhesive", Position: 3},
			{ID: FairFaced, ParameterID: Finish, Name: "fair-faced", Label: "fair-faced", Position: 1},
			{ID: Plastered, ParameterID: Finish, Name: "plastered", Label: "plastered", Position: 2},
		},
		Dependencies: []core.Dependency{
			{ID: DepBrickThickness, ParentParameterID: Material, ParentOptionID: Brick, ChildParameterID: Thickness},
			{ID: DepBlockThickness, ParentParameterID: Material, ParentOptionID: Block, ChildParameterID: Thickness},
			{ID: DepStoneThickness, ParentParameterID: Material, ParentOptionID: Stone, ChildParameterID: Thickness},
			{ID: DepMediumMortar, ParentParameterID: Thickness, ParentOptionID: Medium, ChildParameterID: Mortar},
			{ID: DepThinMortar, ParentParameterID: Thickness, ParentOptionID: Thin, ChildParameterID: Mortar},
			{ID: DepBlockMortar, ParentParameterID: Material, ParentOptionID: Block, ChildParameterID: Mortar},
		},
		DependencyOptions: []core.DependencyOption{
			{DependencyID: DepBrickThickness, OptionID: Thin},
			{DependencyID: DepBrickThickness, OptionID: Medium},
			{DependencyID: DepBlockThickness, OptionID: Medium},
			{DependencyID: DepBlockThickness, OptionID: Thick},
			{DependencyID: DepMediumMortar, OptionID: Cement},
			{DependencyID: DepMediumMortar, OptionID: Lime},
			{DependencyID: DepThinMortar, OptionID: Cement},
			{DependencyID: DepBlockMortar, OptionID: Adhesive},
		},
	}
}

// SimpleCatalog returns the two-parameter catalog "{a} wall with {b}":
// a = brick (root), b = cement/lime with expression "{value} mortar".
func SimpleCatalog() *core.Catalog {
	return &core.Catalog{
		Template: core.Template{
			ID:             2,
			Code:           "SW",
			Name:           "Simple wall",
			NameExpression: "{a} wall with {b}",
			Parameters: []core.TemplateParameter{
				{ParameterID: 1, Position: 1, Required: true},
				{ParameterID: 2, Position: 2, Required: true},
			},
		},
		Parameters: []core.Parameter{
			{ID: 1, Slug: "a", Label: "A", Position: 1},
			{ID: 2, Slug: "b", Label: "B", ExpressionTemplate: "{value} mortar", Position: 2},
		},
		Options: []core.Option{
			{ID: 1, ParameterID: 1, Name: "brick", Label: "brick", Position: 1},
			{ID: 2, ParameterID: 2, Name: "cement", Label: "cement", Position: 1},
			{ID: 3, ParameterID: 2, Name: "lime", Label: "lime", Position: 2},
		},
	}
}
