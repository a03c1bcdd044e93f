package descriptor

// defaultHooks is the table the extension is compiled against. Do not reorder
// or insert entries without rebuilding the extension.
var defaultHooks = []HookDescriptor{
	{ModuleUDwm, "CTopLevelWindow::UpdateNCAreaBackground"},
	{ModuleUDwm, "CTopLevelWindow::ValidateVisual"},
	{ModuleUDwm, "CTopLevelWindow::UpdateText"},
	{ModuleUDwm, "CTopLevelWindow::~CTopLevelWindow"},
	{ModuleUDwm, "CTopLevelWindow::InitializeVisualTreeClone"},
	{ModuleUDwm, "CTopLevelWindow::CloneVisualTree"},
	{ModuleUDwm, "CTopLevelWindow::OnClipUpdated"},
	{ModuleUDwm, "CAccent::UpdateAccentPolicy"},
	{ModuleUDwm, "CAccent::_UpdateSolidFill"},
	{ModuleUDwm, "CAccent::GetAccentPolicy"},
	{ModuleUDwm, "CGlassColorizationParameters::AdjustWindowColorization"},
	{ModuleUDwm, "CDesktopManager::LoadTheme"},
	{ModuleUDwm, "CText::SetColor"},
	{ModuleUDwm, "CText::ValidateResources"},
	{ModuleUDwm, "CWindowList::UpdateAccentBlurRect"},
	{ModuleDwmcore, "CDrawingContext::DrawVisualTree"},
	{ModuleDwmcore, "CRenderData::TryDrawCommandAsDrawList"},
	{ModuleDwmcore, "COcclusionContext::PostSubgraph"},
	{ModuleDwmcore, "CCustomBlur::BuildEffect"},
	{ModuleDwmcore, "CCustomBlur::DetermineOutputScale"},
	{ModuleDwmcore, "CVisual::GetWorldTransform"},
	{ModuleDwmcore, "CChannel::MatrixTransformUpdate"},
	{ModuleDwmcore, "CArrayBasedCoverageSet::AddAntiOccluderRect"},
	{ModuleDwmcore, "CD2DContext::FillEffect"},
}

var defaultTable = MustNew(defaultHooks)

// Default returns the compiled-in table.
func Default() *Table {
	return defaultTable
}
